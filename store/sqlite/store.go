// Package sqlite provides a single-file durable snapshot store backed by
// SQLite via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/store"
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS chrono_jobs (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	trigger_spec   TEXT NOT NULL,
	max_instances  INTEGER NOT NULL,
	misfire_grace  INTEGER NOT NULL,
	timeout        INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 0,
	paused         INTEGER NOT NULL DEFAULT 0
);
`

// Store persists snapshots in a chrono_jobs table. Save replaces the whole
// table in one transaction.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("chrono/sqlite: open %s: %w", path, err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("chrono/sqlite: create schema: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load returns every persisted snapshot ordered by job ID.
func (s *Store) Load(ctx context.Context) ([]store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, trigger_spec, max_instances, misfire_grace, timeout, max_retries, paused
		FROM chrono_jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("chrono/sqlite: load: %w", err)
	}
	defer rows.Close()

	var snaps []store.Snapshot
	for rows.Next() {
		var (
			snap    store.Snapshot
			rawID   string
			rawSpec []byte
			paused  int
		)
		if err := rows.Scan(&rawID, &snap.Name, &rawSpec, &snap.MaxInstances,
			&snap.MisfireGrace, &snap.Timeout, &snap.MaxRetries, &paused); err != nil {
			return nil, fmt.Errorf("chrono/sqlite: scan row: %w", err)
		}

		jobID, err := id.ParseJobID(rawID)
		if err != nil {
			return nil, fmt.Errorf("chrono/sqlite: parse job id %q: %w", rawID, err)
		}
		snap.ID = jobID

		if err := json.Unmarshal(rawSpec, &snap.Trigger); err != nil {
			return nil, fmt.Errorf("chrono/sqlite: decode trigger spec for %s: %w", rawID, err)
		}
		snap.Paused = paused != 0

		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chrono/sqlite: load: %w", err)
	}
	return snaps, nil
}

// Save replaces the persisted set in a single transaction.
func (s *Store) Save(ctx context.Context, snaps []store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chrono/sqlite: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chrono_jobs`); err != nil {
		return fmt.Errorf("chrono/sqlite: clear table: %w", err)
	}

	for _, snap := range snaps {
		rawSpec, err := json.Marshal(snap.Trigger)
		if err != nil {
			return fmt.Errorf("chrono/sqlite: encode trigger spec for %s: %w", snap.ID, err)
		}

		paused := 0
		if snap.Paused {
			paused = 1
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chrono_jobs (id, name, trigger_spec, max_instances, misfire_grace, timeout, max_retries, paused)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID.String(), snap.Name, string(rawSpec), snap.MaxInstances,
			snap.MisfireGrace, snap.Timeout, snap.MaxRetries, paused,
		); err != nil {
			return fmt.Errorf("chrono/sqlite: insert %s: %w", snap.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chrono/sqlite: commit save: %w", err)
	}

	s.logger.Debug("saved job snapshots", slog.Int("count", len(snaps)))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
