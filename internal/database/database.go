package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"movieview/internal/logging"
	"movieview/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the size index of the disk cache.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Entry is the index row for one cached video.
type Entry struct {
	Fingerprint string
	SizeBytes   int64
	LastAccess  time.Time
}

// New opens (creating if needed) the index at dbPath. The parent directory
// is created if missing.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Debug("Size index path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open size index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close size index after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to size index: %w", err)
	}

	// The disk cache serializes writes; a small pool is enough.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close size index after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize size index schema: %w", err)
	}

	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		fingerprint TEXT PRIMARY KEY,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies index schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: last_access (unix nanoseconds) for eviction reporting
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('entries')
		WHERE name='last_access'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for last_access column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating size index: adding last_access column")
		if _, err := d.db.ExecContext(ctx, `
			ALTER TABLE entries ADD COLUMN last_access INTEGER NOT NULL DEFAULT 0
		`); err != nil {
			return fmt.Errorf("failed to add last_access column: %w", err)
		}
		if _, err := d.db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_entries_last_access ON entries(last_access)
		`); err != nil {
			return fmt.Errorf("failed to index last_access: %w", err)
		}
	}

	return nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// recordQuery observes a query duration for metrics.
func recordQuery(operation string, start time.Time) {
	metrics.IndexQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddBytes adjusts the size of fingerprint's entry by delta, creating the
// entry if needed, and advances its last access to at least lastAccess.
// Sizes never go below zero.
func (d *Database) AddBytes(ctx context.Context, fingerprint string, delta int64, lastAccess time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer recordQuery("add_bytes", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO entries (fingerprint, size_bytes, last_access, updated_at)
		VALUES (?, MAX(?, 0), ?, strftime('%s', 'now'))
		ON CONFLICT(fingerprint) DO UPDATE SET
			size_bytes = MAX(entries.size_bytes + ?, 0),
			last_access = MAX(entries.last_access, excluded.last_access),
			updated_at = strftime('%s', 'now')
	`, fingerprint, delta, lastAccess.UnixNano(), delta)
	return err
}

// Delete removes fingerprint's entry. Deleting a missing entry is not an error.
func (d *Database) Delete(ctx context.Context, fingerprint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer recordQuery("delete", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "DELETE FROM entries WHERE fingerprint = ?", fingerprint)
	return err
}

// Totals returns the total indexed bytes and the number of entries.
func (d *Database) Totals(ctx context.Context) (int64, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defer recordQuery("total", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int64
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0), COUNT(*) FROM entries",
	).Scan(&total, &count)
	return total, count, err
}

// Entries returns every entry, least recently accessed first.
func (d *Database) Entries(ctx context.Context) ([]Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defer recordQuery("entries", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT fingerprint, size_bytes, last_access FROM entries ORDER BY last_access ASC, fingerprint ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var lastAccess int64
		if err := rows.Scan(&e.Fingerprint, &e.SizeBytes, &lastAccess); err != nil {
			return nil, err
		}
		e.LastAccess = time.Unix(0, lastAccess)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceAll swaps the whole index for entries in one transaction.
func (d *Database) ReplaceAll(ctx context.Context, entries []Entry) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer recordQuery("replace", time.Now())

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		status := "commit"
		if err != nil {
			status = "rollback"
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
		} else {
			err = tx.Commit()
		}
		metrics.IndexTransactionDuration.WithLabelValues(status).Observe(time.Since(txStart).Seconds())
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries (fingerprint, size_bytes, last_access) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.Fingerprint, e.SizeBytes, e.LastAccess.UnixNano()); err != nil {
			return fmt.Errorf("insert %s: %w", e.Fingerprint, err)
		}
	}
	return nil
}
