// Package audit defines the audit event model: the immutable event record,
// the closed event-type taxonomy, and per-type metadata schemas.
package audit

import (
	"time"
)

// SchemaVersion is the current canonical-form version. It is part of the
// hashed content so future field additions cannot silently change
// canonicalization output for already-persisted events.
const SchemaVersion = 1

// Actor identifies the principal responsible for an event.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// Anonymous is the sentinel actor for unauthenticated events.
var Anonymous = Actor{ID: "anonymous", Role: "anonymous"}

// Event is a single immutable record in the audit ledger.
//
// Once persisted an event is never updated or deleted by the system;
// mutation is only something the verifier must detect as an attack.
type Event struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	ActorID        string                 `json:"actor_id"`
	ActorEmail     string                 `json:"actor_email,omitempty"`
	ActorRole      string                 `json:"actor_role"`
	EventType      EventType              `json:"event_type"`
	ResourceType   string                 `json:"resource_type,omitempty"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	SchemaVersion  int                    `json:"schema_version"`
	SequenceNumber int64                  `json:"sequence_number"`
	PreviousHash   string                 `json:"previous_hash"`
	Hash           string                 `json:"hash"`
	Signature      string                 `json:"signature"`
}

// CanonicalMap returns the logical fields that participate in the event
// hash: everything except Hash and Signature. Optional fields that are
// absent are omitted entirely, which is distinct from an explicit null.
// The timestamp is fixed to UTC RFC 3339 with nanoseconds so byte output
// does not depend on the host time zone.
func (e *Event) CanonicalMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":              e.ID,
		"timestamp":       e.Timestamp.UTC().Format(time.RFC3339Nano),
		"actor_id":        e.ActorID,
		"actor_role":      e.ActorRole,
		"event_type":      string(e.EventType),
		"success":         e.Success,
		"schema_version":  e.SchemaVersion,
		"sequence_number": e.SequenceNumber,
		"previous_hash":   e.PreviousHash,
	}
	if e.ActorEmail != "" {
		m["actor_email"] = e.ActorEmail
	}
	if e.ResourceType != "" {
		m["resource_type"] = e.ResourceType
	}
	if e.ResourceID != "" {
		m["resource_id"] = e.ResourceID
	}
	if e.ErrorMessage != "" {
		m["error_message"] = e.ErrorMessage
	}
	if e.Metadata != nil {
		m["metadata"] = e.Metadata
	}
	return m
}
