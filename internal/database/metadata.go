package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"localfiles/internal/apperr"
)

// Metadata keys.
const (
	MetadataLastScanPass = "last_scan_pass"
)

// GetMetadata retrieves a metadata value by key. A missing key returns an
// error matching apperr.ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("database.metadata", key)
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastScanPass returns the start time of the last completed scan pass.
// Returns zero time if no pass has completed.
func (d *Database) GetLastScanPass(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, MetadataLastScanPass)
	if apperr.IsNotFound(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastScanPass stores the start time of the last completed scan pass.
func (d *Database) SetLastScanPass(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, MetadataLastScanPass, "")
	}
	return d.SetMetadata(ctx, MetadataLastScanPass, t.UTC().Format(time.RFC3339))
}
