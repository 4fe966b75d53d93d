// Package export packages verified ledger ranges into evidence bundles and
// ships them to object storage for auditors.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/antevus/ledger/pkg/merkle"
)

// ErrChainNotClean is returned when a bundle requires a clean chain and
// verification found problems.
var ErrChainNotClean = errors.New("export: chain verification failed")

// Bundle is a generated evidence pack.
type Bundle struct {
	Data        []byte    `json:"-"`
	Checksum    string    `json:"checksum"`
	GeneratedAt time.Time `json:"generated_at"`
	EventCount  int       `json:"event_count"`
	MerkleRoot  string    `json:"merkle_root"`
	ObjectKey   string    `json:"object_key,omitempty"`
}

// Bundler zips an export into an evidence pack: events, proof, manifest,
// and a human-readable README.
type Bundler struct {
	requireCleanChain bool

	clock  func() time.Time
	logger *slog.Logger
}

// BundlerOption configures a Bundler.
type BundlerOption func(*Bundler)

// WithRequireCleanChain rejects bundles over ranges that fail verification.
// Profiles for stricter regulators set this.
func WithRequireCleanChain() BundlerOption {
	return func(b *Bundler) { b.requireCleanChain = true }
}

// WithBundlerClock overrides the bundle timestamp source.
func WithBundlerClock(clock func() time.Time) BundlerOption {
	return func(b *Bundler) { b.clock = clock }
}

// NewBundler builds a bundler.
func NewBundler(opts ...BundlerOption) *Bundler {
	b := &Bundler{
		clock:  time.Now,
		logger: slog.Default().With("component", "export"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate zips the export into an evidence pack and returns the pack with
// its SHA-256 checksum. The proof inside the pack is independently
// checkable; the checksum only guards the pack in transit.
func (b *Bundler) Generate(ctx context.Context, export *merkle.Export) (*Bundle, error) {
	if b.requireCleanChain && !export.Proof.ChainValid {
		return nil, ErrChainNotClean
	}

	eventsJSON, err := json.MarshalIndent(export.Events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal events: %w", err)
	}
	proofJSON, err := json.MarshalIndent(export.Proof, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal proof: %w", err)
	}
	verificationJSON, err := json.MarshalIndent(export.Verification, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal verification: %w", err)
	}

	generatedAt := b.clock().UTC()
	manifest := map[string]interface{}{
		"generated_at":   generatedAt,
		"event_count":    len(export.Events),
		"start_sequence": export.Proof.StartSequence,
		"end_sequence":   export.Proof.EndSequence,
		"merkle_root":    export.Proof.MerkleRoot,
		"chain_valid":    export.Proof.ChainValid,
		"files": map[string]string{
			"events.json":       hashHex(eventsJSON),
			"proof.json":        hashHex(proofJSON),
			"verification.json": hashHex(verificationJSON),
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	files := []struct {
		name string
		data []byte
	}{
		{"events.json", eventsJSON},
		{"proof.json", proofJSON},
		{"verification.json", verificationJSON},
		{"manifest.json", manifestJSON},
	}
	for _, file := range files {
		f, err := w.Create(file.name)
		if err != nil {
			return nil, fmt.Errorf("export: create %s: %w", file.name, err)
		}
		if _, err := f.Write(file.data); err != nil {
			return nil, fmt.Errorf("export: write %s: %w", file.name, err)
		}
	}

	readme, err := w.Create("README.txt")
	if err != nil {
		return nil, fmt.Errorf("export: create README.txt: %w", err)
	}
	fmt.Fprintf(readme, "Audit Ledger Evidence Pack\n")
	fmt.Fprintf(readme, "Generated at %s\n", generatedAt.Format(time.RFC3339))
	fmt.Fprintf(readme, "Sequences %d..%d (%d events)\n",
		export.Proof.StartSequence, export.Proof.EndSequence, len(export.Events))
	fmt.Fprintf(readme, "Merkle root %s\n", export.Proof.MerkleRoot)
	fmt.Fprintf(readme, "Chain valid: %t\n", export.Proof.ChainValid)

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("export: finalize zip: %w", err)
	}

	data := buf.Bytes()
	bundle := &Bundle{
		Data:        data,
		Checksum:    hashHex(data),
		GeneratedAt: generatedAt,
		EventCount:  len(export.Events),
		MerkleRoot:  export.Proof.MerkleRoot,
	}

	b.logger.Info("evidence pack generated",
		"events", bundle.EventCount,
		"bytes", len(data),
		"checksum", bundle.Checksum[:12])
	return bundle, nil
}

func hashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
