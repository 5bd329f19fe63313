package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// SQLiteStore persists safety events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite event store at path. Use
// ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "open event store", err).
			WithContext("path", path)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing DB handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "db is nil", nil)
	}
	if err := ensureEventSchema(db); err != nil {
		return nil, errors.New(errors.CodeStoreError, "ensure event schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Insert stores a single event. A missing ID is generated; a missing
// timestamp defaults to now.
func (s *SQLiteStore) Insert(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO safety_events (
			id, camera_id, camera_name, event_type, severity, resolved, ts, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.CameraID,
		event.CameraName,
		event.EventType,
		event.Severity,
		event.Resolved,
		event.Timestamp.UTC(),
		event.Description,
	)
	if err != nil {
		return errors.New(errors.CodeStoreError, "insert event", err).
			WithContext("event_id", event.ID)
	}
	return nil
}

// List returns events matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, camera_id, camera_name, event_type, severity, resolved, ts, description
		FROM safety_events
	`
	where, args := buildWhere(filter)
	query += where + " ORDER BY ts ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "query events", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event Event
			ts    sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&event.CameraID,
			&event.CameraName,
			&event.EventType,
			&event.Severity,
			&event.Resolved,
			&ts,
			&event.Description,
		); err != nil {
			return nil, errors.New(errors.CodeStoreError, "scan event", err)
		}
		if ts.Valid {
			event.Timestamp = ts.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeStoreError, "iterate events", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM safety_events"+where, args...).Scan(&n)
	if err != nil {
		return 0, errors.New(errors.CodeStoreError, "count events", err)
	}
	return n, nil
}

// ImportJSON seeds the store from a JSON array of events, the format
// the monitoring pipeline exports. Existing rows are kept; duplicate
// IDs fail the import.
func (s *SQLiteStore) ImportJSON(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.New(errors.CodeStoreError, "read events file", err).
			WithContext("path", path)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return 0, errors.New(errors.CodeInvalidInput, "parse events file", err).
			WithContext("path", path)
	}
	for _, event := range events {
		if err := s.Insert(ctx, event); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func buildWhere(filter Filter) (string, []any) {
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.CameraID != "" {
		addFilter("camera_id = ?", filter.CameraID)
	}
	if filter.EventType != "" {
		addFilter("event_type = ?", filter.EventType)
	}
	if filter.Severity != "" {
		addFilter("severity = ?", filter.Severity)
	}
	if filter.Resolved != nil {
		addFilter("resolved = ?", *filter.Resolved)
	}
	if !filter.Since.IsZero() {
		addFilter("ts >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		addFilter("ts <= ?", filter.Until.UTC())
	}
	return where, args
}

func ensureEventSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS safety_events (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			camera_name TEXT,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT 0,
			ts TIMESTAMP NOT NULL,
			description TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_safety_events_camera ON safety_events(camera_id);
		CREATE INDEX IF NOT EXISTS idx_safety_events_type ON safety_events(event_type);
		CREATE INDEX IF NOT EXISTS idx_safety_events_ts ON safety_events(ts);
	`)
	return err
}
