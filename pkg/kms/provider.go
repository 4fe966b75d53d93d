// Package kms provides the signing-key material for the audit ledger.
//
// The chain signer requires a stable secret across restarts, otherwise the
// ledger becomes unverifiable. In production mode a missing or weak key is
// a fatal configuration error; in non-production modes an ephemeral random
// key is generated with a loud warning.
package kms

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/antevus/ledger/pkg/crypto"
)

// ConfigurationError indicates the signing key is absent or unusable in a
// production-like mode. It is fatal at startup and never silently degraded.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "kms: configuration error: " + e.Reason
}

// ErrNoKey is wrapped by providers when no key material is available.
var ErrNoKey = errors.New("kms: no signing key available")

// Provider supplies the master signing key.
type Provider interface {
	SigningKey() ([]byte, error)
}

// EnvProvider reads the signing key from an environment variable.
type EnvProvider struct {
	// Var is the environment variable holding the key (raw string, >=32 chars).
	Var string
	// Production gates the fallback behavior: when true a missing/weak key
	// is a ConfigurationError, when false an ephemeral key is generated.
	Production bool

	logger *slog.Logger
}

// NewEnvProvider returns a provider reading from the given variable.
func NewEnvProvider(envVar string, production bool) *EnvProvider {
	return &EnvProvider{
		Var:        envVar,
		Production: production,
		logger:     slog.Default().With("component", "kms"),
	}
}

// SigningKey returns the configured key, or an ephemeral key outside
// production mode.
func (p *EnvProvider) SigningKey() ([]byte, error) {
	raw := os.Getenv(p.Var)

	switch {
	case len(raw) >= crypto.MinKeyLen:
		return []byte(raw), nil
	case raw != "" && p.Production:
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("%s is set but shorter than %d characters", p.Var, crypto.MinKeyLen),
		}
	case raw != "":
		p.logger.Warn("signing key too short, generating ephemeral key",
			"var", p.Var, "min_len", crypto.MinKeyLen)
		return ephemeralKey()
	case p.Production:
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("%s is not set; the ledger cannot sign events", p.Var),
		}
	default:
		p.logger.Warn("no signing key configured, generating ephemeral key; "+
			"the chain will NOT be verifiable across restarts",
			"var", p.Var)
		return ephemeralKey()
	}
}

func ephemeralKey() ([]byte, error) {
	key := make([]byte, crypto.MinKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%w: ephemeral key generation failed: %w", ErrNoKey, err)
	}
	return key, nil
}
