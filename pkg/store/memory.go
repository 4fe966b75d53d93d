package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/antevus/ledger/pkg/audit"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	bySeq  map[int64]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySeq: make(map[int64]int)}
}

// NewMemoryStoreFrom seeds a store with pre-existing events, e.g. a
// snapshot restored for verification. Events are indexed as given; no
// integrity checks are applied here — that is the verifier's job.
func NewMemoryStoreFrom(events []audit.Event) *MemoryStore {
	s := NewMemoryStore()
	s.events = make([]audit.Event, len(events))
	copy(s.events, events)
	for i, e := range s.events {
		s.bySeq[e.SequenceNumber] = i
	}
	return s
}

func (s *MemoryStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySeq[e.SequenceNumber]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateSequence, e.SequenceNumber)
	}
	s.events = append(s.events, *e)
	s.bySeq[e.SequenceNumber] = len(s.events) - 1
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context) (*audit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) == 0 {
		return nil, ErrNotFound
	}
	latest := s.events[0]
	for _, e := range s.events[1:] {
		if e.SequenceNumber > latest.SequenceNumber {
			latest = e
		}
	}
	return &latest, nil
}

func (s *MemoryStore) Query(ctx context.Context, startSeq, endSeq int64) ([]audit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, 0)
	for seq := startSeq; seq <= endSeq; seq++ {
		if i, ok := s.bySeq[seq]; ok {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// Snapshot returns a copy of all events in insertion order. Used by
// restart/recovery flows and by integrity tests that simulate storage
// tampering on a copy.
func (s *MemoryStore) Snapshot() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
