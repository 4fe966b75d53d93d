package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antevus/ledger/pkg/canonicalize"
)

func TestEventType_Known(t *testing.T) {
	assert.True(t, EventAuthLogin.Known())
	assert.True(t, EventDataExport.Known())
	assert.False(t, EventType("billing.invoice").Known())
	assert.False(t, EventType("").Known())
}

func TestCanonicalMap_OmitsAbsentOptionals(t *testing.T) {
	e := &Event{
		ID:            "evt-1",
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ActorID:       "user-1",
		ActorRole:     "scientist",
		EventType:     EventDataAccess,
		Success:       true,
		SchemaVersion: SchemaVersion,
		PreviousHash:  "00",
	}

	m := e.CanonicalMap()
	_, hasEmail := m["actor_email"]
	_, hasResource := m["resource_id"]
	_, hasError := m["error_message"]
	_, hasMeta := m["metadata"]
	assert.False(t, hasEmail)
	assert.False(t, hasResource)
	assert.False(t, hasError)
	assert.False(t, hasMeta)

	_, hasHash := m["hash"]
	_, hasSig := m["signature"]
	assert.False(t, hasHash, "hash must not participate in its own computation")
	assert.False(t, hasSig)
}

func TestCanonicalMap_TimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	e := &Event{Timestamp: time.Date(2026, 3, 1, 7, 0, 0, 0, loc)}

	m := e.CanonicalMap()
	assert.Equal(t, "2026-03-01T12:00:00Z", m["timestamp"])
}

func TestCanonicalMap_HashStableRegardlessOfSignature(t *testing.T) {
	e := &Event{
		ID:             "evt-2",
		Timestamp:      time.Now(),
		ActorID:        "user-1",
		ActorRole:      "admin",
		EventType:      EventConfigChange,
		Metadata:       map[string]interface{}{"setting": "retention_days"},
		SchemaVersion:  SchemaVersion,
		SequenceNumber: 3,
		PreviousHash:   "abc",
	}

	h1, err := canonicalize.CanonicalHash(e.CanonicalMap())
	require.NoError(t, err)

	e.Hash = "whatever"
	e.Signature = "whatever"
	h2, err := canonicalize.CanonicalHash(e.CanonicalMap())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestRegistry_ValidatesKnownSchemas(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	// Valid payload.
	err = reg.Validate(EventRunStart, map[string]interface{}{"instrument_id": "HPLC-02"})
	assert.NoError(t, err)

	// Missing required field.
	err = reg.Validate(EventRunStart, map[string]interface{}{"protocol": "elution"})
	assert.Error(t, err)

	// Wrong enum value.
	err = reg.Validate(EventDataExport, map[string]interface{}{"format": "xml"})
	assert.Error(t, err)

	// Int metadata values are accepted.
	err = reg.Validate(EventDataExport, map[string]interface{}{"format": "csv", "row_count": 120})
	assert.NoError(t, err)
}

func TestRegistry_TypesWithoutSchemaAcceptAnything(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.NoError(t, reg.Validate(EventAuthLogin, nil))
	assert.NoError(t, reg.Validate(EventDataAccess, map[string]interface{}{"free": "form"}))
}

func TestRegistry_RejectsUnknownType(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.ErrorIs(t, reg.Validate(EventType("nope"), nil), ErrUnknownEventType)
}
