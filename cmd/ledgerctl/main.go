// ledgerctl is the operator CLI for the tamper-evident audit ledger:
// appending events, verifying chain integrity, and producing signed
// evidence exports.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/antevus/ledger/pkg/chain"
	"github.com/antevus/ledger/pkg/config"
	"github.com/antevus/ledger/pkg/crypto"
	"github.com/antevus/ledger/pkg/kms"
	"github.com/antevus/ledger/pkg/observability"
	"github.com/antevus/ledger/pkg/store"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "append":
		return runAppendCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "status":
		return runStatusCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ledgerctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  append   Append an audit event to the ledger")
	fmt.Fprintln(w, "  verify   Verify chain integrity over a sequence range")
	fmt.Fprintln(w, "  export   Produce a signed evidence pack for a range")
	fmt.Fprintln(w, "  status   Show chain tip and event count")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Exit codes: 0 ok, 1 verification failed, 2 runtime error")
}

// runtime holds the wired components shared by all commands.
type runtime struct {
	cfg    *config.Config
	store  store.Store
	master []byte
	obs    *observability.Provider
	closer func() error
}

func (r *runtime) Close() error {
	if r.obs != nil {
		_ = r.obs.Shutdown(context.Background())
	}
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

func (r *runtime) eventSigner() (crypto.Signer, error) {
	return crypto.NewDerivedSigner(r.master, crypto.PurposeEventSigning)
}

func (r *runtime) exportSigner() (crypto.Signer, error) {
	return crypto.NewDerivedSigner(r.master, crypto.PurposeExportSigning)
}

// buildRuntime loads configuration, resolves the signing key, and opens
// the configured store backend.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.Load()
	initLogging(cfg.LogLevel)

	// Install the tracer provider before any engine or verifier is built:
	// the append and verify spans resolve their tracer from the global.
	obsCfg := observability.DefaultConfig()
	obsCfg.Environment = cfg.Environment
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	obsCfg.Insecure = !cfg.Production()
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	var provider kms.Provider
	if cfg.KeystorePath != "" {
		fp, err := kms.NewFileProvider(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("open keystore: %w", err)
		}
		provider = fp
	} else {
		provider = kms.NewEnvProvider(cfg.SigningKeyVar, cfg.Production())
	}
	master, err := provider.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("resolve signing key: %w", err)
	}

	rt := &runtime{cfg: cfg, master: master, obs: obs}
	switch cfg.StoreDriver {
	case "sqlite":
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.store = st
		rt.closer = st.Close
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st, err := store.NewPostgresStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		rt.store = st
		rt.closer = db.Close
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return rt, nil
}

// loadProfile resolves a compliance profile from the configured profiles
// directory. An empty code means no profile.
func (r *runtime) loadProfile(code string) (*config.ComplianceProfile, error) {
	if code == "" {
		return nil, nil
	}
	return config.LoadProfile(r.cfg.ProfilesDir, code)
}

// verifierOptions merges env defaults with an optional compliance profile;
// profile values win when set.
func (r *runtime) verifierOptions(profile *config.ComplianceProfile) []chain.VerifierOption {
	chunk := r.cfg.VerifyChunkSize
	limit := r.cfg.VerifyRateLimit
	if profile != nil {
		if profile.Verify.ChunkSize > 0 {
			chunk = profile.Verify.ChunkSize
		}
		if profile.Verify.RateLimitPerSecond > 0 {
			limit = profile.Verify.RateLimitPerSecond
		}
	}

	opts := []chain.VerifierOption{}
	if chunk > 0 {
		opts = append(opts, chain.WithChunkSize(chunk))
	}
	if limit > 0 {
		opts = append(opts, chain.WithRateLimit(rate.NewLimiter(rate.Limit(limit), 1)))
	}
	return opts
}

func (r *runtime) newVerifier(signer crypto.Signer, profile *config.ComplianceProfile) *chain.Verifier {
	return chain.NewVerifier(r.store, signer, r.verifierOptions(profile)...)
}

func initLogging(level string) {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
