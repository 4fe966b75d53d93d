package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/antevus/ledger/pkg/audit"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in SQLite. Suited to single-node and
// lite-mode deployments; the sequence primary key enforces append-only
// uniqueness at the storage layer.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed store at the given DSN.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an existing handle (used by tests and embedders).
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		sequence_number INTEGER PRIMARY KEY,
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
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return nil
}

// Close releases the underlying handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `sequence_number, id, timestamp, actor_id, actor_email, actor_role,
	event_type, resource_type, resource_id, success, error_message, metadata,
	schema_version, previous_hash, hash, signature`

func (s *SQLiteStore) AppendEvent(ctx context.Context, e *audit.Event) error {
	var metaJSON sql.NullString
	if e.Metadata != nil {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_events (` + sqliteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.SequenceNumber, e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ActorID, nullable(e.ActorEmail), e.ActorRole,
		string(e.EventType), nullable(e.ResourceType), nullable(e.ResourceID),
		boolToInt(e.Success), nullable(e.ErrorMessage), metaJSON,
		e.SchemaVersion, e.PreviousHash, e.Hash, e.Signature,
	)
	if err != nil {
		// UNIQUE violation on the sequence PK means a competing writer.
		if isConstraintErr(err) {
			return fmt.Errorf("%w: %d", ErrDuplicateSequence, e.SequenceNumber)
		}
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context) (*audit.Event, error) {
	query := `SELECT ` + sqliteColumns + ` FROM audit_events
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

func (s *SQLiteStore) Query(ctx context.Context, startSeq, endSeq int64) ([]audit.Event, error) {
	query := `SELECT ` + sqliteColumns + ` FROM audit_events
		WHERE sequence_number BETWEEN ? AND ?
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

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}
