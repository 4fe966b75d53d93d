package merkle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/antevus/ledger/pkg/audit"
	"github.com/antevus/ledger/pkg/chain"
	"github.com/antevus/ledger/pkg/crypto"
	"github.com/antevus/ledger/pkg/store"
)

// ErrEmptyRange is returned when an export range contains no events.
var ErrEmptyRange = errors.New("merkle: export range contains no events")

// ExportProof is the integrity proof attached to an exported event range.
// The signature covers the root and the range bounds, so a proof cannot be
// replayed for a different slice of the ledger.
type ExportProof struct {
	MerkleRoot      string    `json:"merkle_root"`
	LeafCount       int       `json:"leaf_count"`
	StartSequence   int64     `json:"start_sequence"`
	EndSequence     int64     `json:"end_sequence"`
	ChainValid      bool      `json:"chain_valid"`
	ExportSignature string    `json:"export_signature"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Export is a verifiable bundle of events plus their proof and the chain
// verification result for the same range.
type Export struct {
	Events       []audit.Event             `json:"events"`
	Proof        ExportProof               `json:"proof"`
	Verification *chain.VerificationResult `json:"verification"`
}

// Prover builds signed export proofs over stored event ranges.
type Prover struct {
	store    store.Store
	verifier *chain.Verifier
	signer   crypto.Signer

	clock  func() time.Time
	logger *slog.Logger
}

// ProverOption configures a Prover.
type ProverOption func(*Prover)

// WithProverClock overrides the proof timestamp source.
func WithProverClock(clock func() time.Time) ProverOption {
	return func(p *Prover) { p.clock = clock }
}

// WithProverLogger sets the structured logger.
func WithProverLogger(l *slog.Logger) ProverOption {
	return func(p *Prover) { p.logger = l }
}

// NewProver builds a prover. The signer must be the export signer, not the
// event signer; the two are derived under separate purpose labels.
func NewProver(st store.Store, verifier *chain.Verifier, exportSigner crypto.Signer, opts ...ProverOption) *Prover {
	p := &Prover{
		store:    st,
		verifier: verifier,
		signer:   exportSigner,
		clock:    time.Now,
		logger:   slog.Default().With("component", "prover"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExportWithProof verifies [start, end], loads the events, computes the
// Merkle root over their stored hashes in sequence order, and signs the
// proof. A negative end pins the range to the latest persisted event.
//
// Verification findings do not block the export: a compromised range is
// still exportable as evidence, with ChainValid false and the findings
// attached. Structural breaks that leave events missing from storage
// surface as ErrEmptyRange or a short leaf set instead.
func (p *Prover) ExportWithProof(ctx context.Context, start, end int64) (*Export, error) {
	if start < 0 {
		start = 0
	}
	if end < 0 {
		latest, err := p.store.Latest(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEmptyRange
		}
		if err != nil {
			return nil, fmt.Errorf("merkle: resolve latest: %w", err)
		}
		end = latest.SequenceNumber
	}

	verification, err := p.verifier.Verify(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("merkle: verify range: %w", err)
	}

	events, err := p.store.Query(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("merkle: load range: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrEmptyRange
	}

	hashes := make([]string, len(events))
	for i := range events {
		hashes[i] = events[i].Hash
	}
	root, err := ComputeRoot(hashes)
	if err != nil {
		return nil, err
	}

	proof := ExportProof{
		MerkleRoot:      root,
		LeafCount:       len(hashes),
		StartSequence:   start,
		EndSequence:     end,
		ChainValid:      verification.Valid,
		ExportSignature: p.signer.Sign(signingPayload(root, start, end)),
		GeneratedAt:     p.clock().UTC(),
	}

	p.logger.Info("export proof generated",
		"start", start, "end", end,
		"leaves", proof.LeafCount,
		"chain_valid", proof.ChainValid)

	return &Export{Events: events, Proof: proof, Verification: verification}, nil
}

// VerifyExportProof recomputes the root from the exported events and checks
// it, the range bounds, and the signature against the proof.
func VerifyExportProof(export *Export, exportSigner crypto.Signer) error {
	proof := export.Proof
	if len(export.Events) != proof.LeafCount {
		return fmt.Errorf("merkle: proof covers %d events, export has %d",
			proof.LeafCount, len(export.Events))
	}

	hashes := make([]string, len(export.Events))
	for i := range export.Events {
		seq := export.Events[i].SequenceNumber
		if seq < proof.StartSequence || seq > proof.EndSequence {
			return fmt.Errorf("merkle: event sequence %d outside proof range [%d, %d]",
				seq, proof.StartSequence, proof.EndSequence)
		}
		hashes[i] = export.Events[i].Hash
	}

	root, err := ComputeRoot(hashes)
	if err != nil {
		return err
	}
	if root != proof.MerkleRoot {
		return fmt.Errorf("merkle: recomputed root %s does not match proof root %s",
			abbreviate(root), abbreviate(proof.MerkleRoot))
	}

	if !exportSigner.Verify(signingPayload(root, proof.StartSequence, proof.EndSequence), proof.ExportSignature) {
		return errors.New("merkle: export signature invalid")
	}
	return nil
}

func signingPayload(root string, start, end int64) string {
	return fmt.Sprintf("%s:%d:%d", root, start, end)
}

func abbreviate(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
