// Package chain implements the tamper-evident core of the audit ledger:
// the single-writer append engine and the range verifier.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/antevus/ledger/pkg/audit"
	"github.com/antevus/ledger/pkg/crypto"
	"github.com/antevus/ledger/pkg/store"
)

const tracerName = "antevus.ledger"

// Details carries the caller-supplied fields of an append.
type Details struct {
	ResourceType string
	ResourceID   string
	Success      bool
	ErrorMessage string
	Metadata     map[string]interface{}
}

// Engine orchestrates canonicalize -> hash -> sign -> persist -> advance
// under mutual exclusion. There is exactly one logical writer per ledger
// instance: two concurrent appends that both read the same tip would fork
// the chain, so the lock spans the whole sequence including the store
// call.
type Engine struct {
	mu    sync.Mutex
	state State

	store    store.Store
	signer   crypto.Signer
	hasher   crypto.Hasher
	registry *audit.Registry

	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDFunc overrides event ID generation.
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer used for append spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine builds an engine whose chain state is derived from the latest
// persisted event. A fresh ledger starts at genesis/0; a store read error
// is an InitializationError and must abort startup.
func NewEngine(ctx context.Context, st store.Store, signer crypto.Signer, opts ...Option) (*Engine, error) {
	registry, err := audit.NewRegistry()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:    st,
		signer:   signer,
		hasher:   crypto.NewCanonicalHasher(),
		registry: registry,
		clock:    time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   slog.Default().With("component", "chain"),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	latest, err := st.Latest(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.state = State{TipHash: GenesisHash, NextSequence: 0}
	case err != nil:
		return nil, &InitializationError{Err: err}
	default:
		e.state = State{TipHash: latest.Hash, NextSequence: latest.SequenceNumber + 1}
	}

	e.logger.Info("chain state initialized",
		"next_sequence", e.state.NextSequence,
		"tip", abbreviate(e.state.TipHash))
	return e, nil
}

// Append validates, builds, hashes, signs, and durably persists one event,
// then advances the chain state. On persistence failure the state is left
// untouched and a PersistenceError is returned.
func (e *Engine) Append(ctx context.Context, actor audit.Actor, eventType audit.EventType, details Details) (*audit.Event, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.append",
		trace.WithAttributes(attribute.String("audit.event_type", string(eventType))))
	defer span.End()

	if err := e.registry.Validate(eventType, details.Metadata); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if actor.ID == "" {
		actor = audit.Anonymous
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	event := &audit.Event{
		ID:             e.newID(),
		Timestamp:      e.clock().UTC(),
		ActorID:        actor.ID,
		ActorEmail:     actor.Email,
		ActorRole:      actor.Role,
		EventType:      eventType,
		ResourceType:   details.ResourceType,
		ResourceID:     details.ResourceID,
		Success:        details.Success,
		ErrorMessage:   details.ErrorMessage,
		Metadata:       details.Metadata,
		SchemaVersion:  audit.SchemaVersion,
		SequenceNumber: e.state.NextSequence,
		PreviousHash:   e.state.TipHash,
	}

	hash, err := e.hasher.Hash(event.CanonicalMap())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chain: hash event: %w", err)
	}
	event.Hash = hash
	event.Signature = e.signer.Sign(hash)

	// Persist before advancing: advancing first would let a failed write
	// leave the in-memory tip pointing at a hash that was never durably
	// recorded, corrupting every subsequent link.
	if err := e.store.AppendEvent(ctx, event); err != nil {
		span.RecordError(err)
		return nil, &PersistenceError{Op: "append", Err: err}
	}

	e.state.TipHash = event.Hash
	e.state.NextSequence++

	e.logger.Debug("event appended",
		"sequence", event.SequenceNumber,
		"event_type", event.EventType,
		"hash", abbreviate(event.Hash))
	return event, nil
}

// State returns a copy of the current chain state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func abbreviate(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
