package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antevus/ledger/pkg/audit"
)

func testEvent(seq int64, id string) *audit.Event {
	return &audit.Event{
		ID:             id,
		Timestamp:      time.Now().UTC(),
		ActorID:        "user-1",
		ActorRole:      "scientist",
		EventType:      audit.EventDataAccess,
		Success:        true,
		SchemaVersion:  audit.SchemaVersion,
		SequenceNumber: seq,
		PreviousHash:   "prev",
		Hash:           "hash-" + id,
		Signature:      "sig-" + id,
	}
}

func TestMemoryStore_AppendAndLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AppendEvent(ctx, testEvent(0, "a")))
	require.NoError(t, s.AppendEvent(ctx, testEvent(1, "b")))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.SequenceNumber)
	assert.Equal(t, "b", latest.ID)
}

func TestMemoryStore_RejectsDuplicateSequence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, testEvent(0, "a")))
	err := s.AppendEvent(ctx, testEvent(0, "b"))
	assert.ErrorIs(t, err, ErrDuplicateSequence)
}

func TestMemoryStore_QueryRange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, testEvent(i, string(rune('a'+i)))))
	}

	events, err := s.Query(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].SequenceNumber)
	assert.Equal(t, int64(3), events[2].SequenceNumber)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMemoryStore_SeededFromSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, testEvent(0, "a")))
	require.NoError(t, s.AppendEvent(ctx, testEvent(1, "b")))

	restored := NewMemoryStoreFrom(s.Snapshot())
	latest, err := restored.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
}

func TestMemoryStore_HonorsContextCancellation(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.AppendEvent(ctx, testEvent(0, "a")))
	_, err := s.Query(ctx, 0, 10)
	assert.Error(t, err)
}
