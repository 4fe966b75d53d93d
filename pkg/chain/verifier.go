package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/antevus/ledger/pkg/crypto"
	"github.com/antevus/ledger/pkg/store"
)

// defaultChunkSize bounds a single store read during verification so long
// scans remain cancelable and never hold large ranges in memory.
const defaultChunkSize = 512

// ErrInvalidRange is returned when a verification range is inverted. An
// inverted range would scan nothing; reporting it Valid would vouch for
// zero events.
var ErrInvalidRange = errors.New("chain: invalid verification range")

// VerificationResult reports the outcome of a chain scan.
//
// A structural break (sequence gap or link mismatch) sets
// BrokenChainAtSequence and aborts the scan: transitive trust in
// everything after the break is gone. Content and signature mismatches are
// localized findings: the event ID is recorded and the scan continues.
type VerificationResult struct {
	Valid                 bool     `json:"valid"`
	Errors                []string `json:"errors"`
	BrokenChainAtSequence *int64   `json:"broken_chain_at_sequence,omitempty"`
	TamperedEventIDs      []string `json:"tampered_event_ids"`
	StartSequence         int64    `json:"start_sequence"`
	EndSequence           int64    `json:"end_sequence"`
	EventsChecked         int64    `json:"events_checked"`
}

// Verifier replays a stored range, recomputing hashes and signatures and
// checking linkage and sequence monotonicity. It holds no state beyond
// local scan variables, so it may run concurrently with appends and with
// other verifications; the range end is pinned at invocation time.
//
// Policy note: after a content-tampered event the scan advances with the
// *stored* hash, not the recomputed one. A single tampered event therefore
// does not cascade false chain-break reports into every subsequent,
// otherwise-valid event — but it also means events after a tampered one
// are only trusted relative to the stored (possibly forged) link. Auditors
// treat any Valid=false result as grounds for a full-range investigation.
type Verifier struct {
	store  store.Store
	signer crypto.Signer
	hasher crypto.Hasher

	chunkSize int64
	limiter   *rate.Limiter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithChunkSize bounds the per-read batch during a scan.
func WithChunkSize(n int64) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.chunkSize = n
		}
	}
}

// WithRateLimit paces chunk reads of long scans so a background
// verification pass does not saturate the store.
func WithRateLimit(l *rate.Limiter) VerifierOption {
	return func(v *Verifier) { v.limiter = l }
}

// WithVerifierLogger sets the structured logger.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier builds a verifier over the given store and signer.
func NewVerifier(st store.Store, signer crypto.Signer, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:     st,
		signer:    signer,
		hasher:    crypto.NewCanonicalHasher(),
		chunkSize: defaultChunkSize,
		logger:    slog.Default().With("component", "verifier"),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify scans [start, end] in ascending sequence order. A negative end
// pins the range to the latest persisted event at invocation time; a
// negative start means 0. Verification findings are returned in the
// result; the error return is reserved for store read failures.
func (v *Verifier) Verify(ctx context.Context, start, end int64) (*VerificationResult, error) {
	ctx, span := v.tracer.Start(ctx, "ledger.verify")
	defer span.End()

	if start < 0 {
		start = 0
	}
	if end < 0 {
		latest, err := v.store.Latest(ctx)
		if errors.Is(err, store.ErrNotFound) {
			// Empty ledger: trivially valid.
			return &VerificationResult{
				Valid:            true,
				Errors:           []string{},
				TamperedEventIDs: []string{},
				StartSequence:    start,
				EndSequence:      -1,
			}, nil
		}
		if err != nil {
			span.RecordError(err)
			return nil, &PersistenceError{Op: "verify/latest", Err: err}
		}
		end = latest.SequenceNumber
	}
	if start > end {
		return nil, fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, start, end)
	}
	span.SetAttributes(attribute.Int64("ledger.start", start), attribute.Int64("ledger.end", end))

	result := &VerificationResult{
		Valid:            true,
		Errors:           []string{},
		TamperedEventIDs: []string{},
		StartSequence:    start,
		EndSequence:      end,
	}

	expectedPrev, ok, err := v.resolvePredecessor(ctx, start, result)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		result.Valid = false
		return result, nil
	}

	expectedSeq := start
scan:
	for chunkStart := start; chunkStart <= end; chunkStart += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chain: verification canceled: %w", err)
		}
		if v.limiter != nil {
			if err := v.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("chain: verification canceled: %w", err)
			}
		}

		chunkEnd := chunkStart + v.chunkSize - 1
		if chunkEnd > end {
			chunkEnd = end
		}
		events, err := v.store.Query(ctx, chunkStart, chunkEnd)
		if err != nil {
			span.RecordError(err)
			return nil, &PersistenceError{Op: "verify/query", Err: err}
		}

		for i := range events {
			event := &events[i]
			result.EventsChecked++

			// Structural checks abort: a gap or link break means the
			// ledger is broken from this point on and further checks
			// are meaningless.
			if event.SequenceNumber != expectedSeq {
				result.addError("sequence gap: expected %d, found %d", expectedSeq, event.SequenceNumber)
				result.markBroken(expectedSeq)
				break scan
			}
			if event.PreviousHash != expectedPrev {
				result.addError("chain link broken at sequence %d: previous_hash %s does not match expected %s",
					event.SequenceNumber, abbreviate(event.PreviousHash), abbreviate(expectedPrev))
				result.markBroken(event.SequenceNumber)
				break scan
			}

			tampered := false

			// Content check: recompute the hash from stored fields.
			recomputed, err := v.hasher.Hash(event.CanonicalMap())
			if err != nil {
				result.addError("event %s (seq %d): canonicalization failed: %v", event.ID, event.SequenceNumber, err)
				tampered = true
			} else if recomputed != event.Hash {
				result.addError("event %s (seq %d): content hash mismatch", event.ID, event.SequenceNumber)
				tampered = true
			}

			// Signature check runs against the *stored* hash so it stays
			// independent of the content check above.
			if !v.signer.Verify(event.Hash, event.Signature) {
				result.addError("event %s (seq %d): signature invalid", event.ID, event.SequenceNumber)
				tampered = true
			}

			if tampered {
				result.TamperedEventIDs = append(result.TamperedEventIDs, event.ID)
			}

			expectedPrev = event.Hash // stored hash, see policy note above
			expectedSeq++
		}
	}

	// Events missing at the tail of the range are a sequence gap too.
	if result.BrokenChainAtSequence == nil && expectedSeq <= end {
		result.addError("sequence gap: events %d..%d missing", expectedSeq, end)
		result.markBroken(expectedSeq)
	}

	result.Valid = len(result.Errors) == 0 && len(result.TamperedEventIDs) == 0
	if !result.Valid {
		v.logger.Warn("verification found problems",
			"start", start, "end", end,
			"errors", len(result.Errors),
			"tampered", len(result.TamperedEventIDs))
	}
	return result, nil
}

// resolvePredecessor determines the hash expected to precede the range.
// For start 0 that is genesis; otherwise the stored hash of start-1. A
// missing predecessor makes the range unlinkable and is reported as a
// structural finding, not an error.
func (v *Verifier) resolvePredecessor(ctx context.Context, start int64, result *VerificationResult) (string, bool, error) {
	if start == 0 {
		return GenesisHash, true, nil
	}

	events, err := v.store.Query(ctx, start-1, start-1)
	if err != nil {
		return "", false, &PersistenceError{Op: "verify/predecessor", Err: err}
	}
	if len(events) == 0 {
		result.addError("cannot resolve predecessor of sequence %d", start)
		result.markBroken(start)
		return "", false, nil
	}
	return events[0].Hash, true, nil
}

func (r *VerificationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *VerificationResult) markBroken(seq int64) {
	if r.BrokenChainAtSequence == nil {
		s := seq
		r.BrokenChainAtSequence = &s
	}
}
