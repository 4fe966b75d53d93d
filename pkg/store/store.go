// Package store implements append-only persistence for audit events,
// ordered by sequence number. Backends must never update or delete rows;
// the chain verifier treats any such mutation as tampering.
package store

import (
	"context"
	"errors"

	"github.com/antevus/ledger/pkg/audit"
)

var (
	// ErrNotFound is returned by Latest on an empty ledger.
	ErrNotFound = errors.New("store: no events")
	// ErrDuplicateSequence is returned when an append collides with an
	// existing sequence number. Under a correctly serialized append engine
	// this indicates a second writer.
	ErrDuplicateSequence = errors.New("store: duplicate sequence number")
)

// Store is the persistence adapter for the chain engine and verifier.
type Store interface {
	// AppendEvent durably records a completed event. Append-only: the
	// sequence number must not already exist.
	AppendEvent(ctx context.Context, e *audit.Event) error

	// Latest returns the event with the highest sequence number, or
	// ErrNotFound when the ledger is empty.
	Latest(ctx context.Context) (*audit.Event, error)

	// Query returns events with sequence in [startSeq, endSeq], ascending.
	Query(ctx context.Context, startSeq, endSeq int64) ([]audit.Event, error)

	// Count returns the number of persisted events.
	Count(ctx context.Context) (int64, error)
}
