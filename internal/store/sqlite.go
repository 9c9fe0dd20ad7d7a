package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailnotify/internal/model"
)

const memoryDSN = ":memory:"

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Load returns every recorded identifier.
func (s *SQLiteStore) Load(ctx context.Context) (IDSet, error) {
	rows, err := s.Processed(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(IDSet, len(rows))
	for _, r := range rows {
		ids.Add(r.ID)
	}
	return ids, nil
}

// Processed lists the recorded messages, oldest first.
func (s *SQLiteStore) Processed(ctx context.Context) ([]model.ProcessedMessage, error) {
	var rows []model.ProcessedMessage
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, notified_at FROM processed_messages ORDER BY notified_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying processed messages: %w", err)
	}
	return rows, nil
}

// Add records id and bumps the last_updated marker in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, id string) error {
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_messages (id, notified_at) VALUES (?, ?)",
		id, now,
	)
	if err != nil {
		return fmt.Errorf("recording message %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO store_meta (key, value) VALUES ('last_updated', ?)",
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("updating last_updated: %w", err)
	}

	return tx.Commit()
}

// LastUpdated returns the time of the latest Add, or the zero time when
// nothing was recorded.
func (s *SQLiteStore) LastUpdated(ctx context.Context) (time.Time, error) {
	var values []string
	err := s.db.SelectContext(ctx, &values,
		"SELECT value FROM store_meta WHERE key = 'last_updated'",
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last_updated: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, values[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last_updated %q: %w", values[0], err)
	}
	return t, nil
}
