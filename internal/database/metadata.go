package database

import (
	"context"
	"database/sql"
	"errors"
)

const cleanKey = "clean_shutdown"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// IsClean reports whether the index was marked clean by its last user.
// A fresh index is not clean.
func (d *Database) IsClean(ctx context.Context) (bool, error) {
	value, err := d.GetMetadata(ctx, cleanKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

// SetClean records whether the index is in sync with the cache directory.
// The disk cache clears the flag while open and sets it on close.
func (d *Database) SetClean(ctx context.Context, clean bool) error {
	value := "0"
	if clean {
		value = "1"
	}
	return d.SetMetadata(ctx, cleanKey, value)
}
