package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/antevus/ledger/pkg/audit"
)

// PostgresStore persists audit events in Postgres. The caller is expected
// to import the driver (lib/pq) and hand over an open handle.
//
// The timestamp column is TEXT holding the canonical RFC 3339 string: the
// verifier rehashes stored fields, and a TIMESTAMPTZ round-trip can
// truncate nanosecond precision and flip otherwise-valid events into
// tamper findings.
type PostgresStore struct {
	db *sql.DB
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	sequence_number BIGINT PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	timestamp TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	actor_email TEXT,
	actor_role TEXT NOT NULL,
	event_type TEXT NOT NULL,
	resource_type TEXT,
	resource_id TEXT,
	success INTEGER NOT NULL,
	error_message TEXT,
	metadata TEXT,
	schema_version INTEGER NOT NULL,
	previous_hash TEXT NOT NULL,
	hash TEXT NOT NULL,
	signature TEXT NOT NULL
);`

// NewPostgresStore wraps an open handle and ensures the schema exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("store: migrate postgres: %w", err)
	}
	return s, nil
}

const pgColumns = `sequence_number, id, timestamp, actor_id, actor_email, actor_role,
	event_type, resource_type, resource_id, success, error_message, metadata,
	schema_version, previous_hash, hash, signature`

func (s *PostgresStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	var metaJSON sql.NullString
	if e.Metadata != nil {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_events (` + pgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := s.db.ExecContext(ctx, query,
		e.SequenceNumber, e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ActorID, nullable(e.ActorEmail), e.ActorRole,
		string(e.EventType), nullable(e.ResourceType), nullable(e.ResourceID),
		boolToInt(e.Success), nullable(e.ErrorMessage), metaJSON,
		e.SchemaVersion, e.PreviousHash, e.Hash, e.Signature,
	)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("%w: %d", ErrDuplicateSequence, e.SequenceNumber)
		}
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (*audit.Event, error) {
	query := `SELECT ` + pgColumns + ` FROM audit_events
		ORDER BY sequence_number DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: latest event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Query(ctx context.Context, startSeq, endSeq int64) ([]audit.Event, error) {
	query := `SELECT ` + pgColumns + ` FROM audit_events
		WHERE sequence_number BETWEEN $1 AND $2
		ORDER BY sequence_number ASC`
	rows, err := s.db.QueryContext(ctx, query, startSeq, endSeq)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]audit.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate events: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}
