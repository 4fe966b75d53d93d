package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/antevus/ledger/pkg/audit"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*audit.Event, error) {
	var (
		e          audit.Event
		timestamp  string
		eventType  string
		actorEmail sql.NullString
		resType    sql.NullString
		resID      sql.NullString
		errMsg     sql.NullString
		metaJSON   sql.NullString
		success    int
	)

	err := row.Scan(
		&e.SequenceNumber, &e.ID, &timestamp, &e.ActorID, &actorEmail, &e.ActorRole,
		&eventType, &resType, &resID, &success, &errMsg, &metaJSON,
		&e.SchemaVersion, &e.PreviousHash, &e.Hash, &e.Signature,
	)
	if err != nil {
		return nil, err
	}

	e.Timestamp = parseTime(timestamp)
	e.EventType = audit.EventType(eventType)
	e.ActorEmail = actorEmail.String
	e.ResourceType = resType.String
	e.ResourceID = resID.String
	e.ErrorMessage = errMsg.String
	e.Success = success != 0

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
			// Fail loud: corrupt metadata would silently change the
			// recomputed hash and surface as a spurious tamper finding.
			return nil, fmt.Errorf("corrupt metadata for event %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
