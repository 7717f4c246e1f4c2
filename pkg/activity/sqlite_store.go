// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arbiterhq/arbiter/pkg/faults"
)

// sqliteTimeFormat is fixed-width so lexicographic order on the TEXT column
// matches chronological order. RFC3339Nano trims trailing fractional zeros,
// which breaks ordering within a second (".1Z" sorts after ".15Z").
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists activity entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureActivitySchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) a SQLite database at path and wraps it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	details, err := encodeFields(entry.Details)
	if err != nil {
		return err
	}
	metadata, err := encodeFields(entry.Metadata)
	if err != nil {
		return err
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_entries (timestamp, activity_type, agent_name, details_json, metadata_json)
		VALUES (?, ?, ?, ?, ?)
	`,
		ts.UTC().Format(sqliteTimeFormat),
		entry.ActivityType,
		entry.AgentName,
		details,
		metadata,
	)
	if err != nil {
		return faults.New(faults.CodeStorageUnavailable, "activity append failed", err)
	}
	return nil
}

// Query implements Store. Entries are returned newest first.
func (s *SQLiteStore) Query(ctx context.Context, filter Filter, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT timestamp, activity_type, agent_name, details_json, metadata_json
		FROM activity_entries
	`
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
	if filter.ActivityType != "" {
		addFilter("activity_type = ?", filter.ActivityType)
	}
	if filter.AgentName != "" {
		addFilter("agent_name = ?", filter.AgentName)
	}
	query += where + " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, faults.New(faults.CodeStorageUnavailable, "activity query failed", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			ts       string
			details  string
			metadata string
		)
		if err := rows.Scan(&ts, &entry.ActivityType, &entry.AgentName, &details, &metadata); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil { // accepts the fixed-width form too
			entry.Timestamp = parsed
		}
		if entry.Details, err = decodeFields(details); err != nil {
			return nil, err
		}
		if entry.Metadata, err = decodeFields(metadata); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureActivitySchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS activity_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			details_json TEXT,
			metadata_json TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_activity_type ON activity_entries(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activity_agent ON activity_entries(agent_name);
		CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_entries(timestamp);
	`)
	return err
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", faults.New(faults.CodeInvalidInput, "activity fields not JSON-representable", err)
	}
	return string(data), nil
}

func decodeFields(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
