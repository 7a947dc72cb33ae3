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

	"localfiles/internal/apperr"
	"localfiles/internal/database/migrations"
	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Backend is the metrics label for this store.
const Backend = "sqlite"

// Namespaces backed by a table each.
const (
	NamespaceFiles = "files"
	NamespaceMeta  = "meta"
)

// Database is the SQLite backed index store.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the database file at dbPath and applies
// pending migrations. The parent directory must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout keeps concurrent ingest writers from failing with "database is locked"
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrations.MigrateUp(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after migration failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return &Database{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Files returns the path -> record namespace.
func (d *Database) Files() *Table {
	return &Table{d: d, name: NamespaceFiles}
}

// Meta returns the inverted key -> path set namespace.
func (d *Database) Meta() *Table {
	return &Table{d: d, name: NamespaceMeta}
}

// SchemaVersion returns the applied and latest schema versions.
func (d *Database) SchemaVersion() (current, latest uint, dirty bool, err error) {
	return migrations.Status(d.db)
}

// Counts returns the number of records and tombstones without decoding
// record bodies.
func (d *Database) Counts(ctx context.Context) (records, tombstones int, err error) {
	start := time.Now()
	defer func() { recordOp(NamespaceFiles+".count", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(uninteresting), 0) FROM files").Scan(&records, &tombstones)
	if err != nil {
		return 0, 0, apperr.Internal("database.counts", err)
	}
	return records, tombstones, nil
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordOp("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// Table is one key-value namespace. It implements index.KV.
type Table struct {
	d    *Database
	name string
}

// Get implements index.KV.
func (t *Table) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordOp(t.name+".get", start, err) }()

	t.d.mu.RLock()
	defer t.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = t.d.db.QueryRowContext(ctx, "SELECT value FROM "+t.name+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, apperr.NotFound("database."+t.name+".get", key)
	}
	if err != nil {
		return nil, apperr.Internal("database."+t.name+".get", err)
	}
	return []byte(value), nil
}

// Put implements index.KV.
func (t *Table) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	var err error
	defer func() { recordOp(t.name+".put", start, err) }()

	t.d.mu.RLock()
	defer t.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if t.name == NamespaceFiles {
		_, err = t.d.db.ExecContext(ctx, `
			INSERT INTO files (key, value, uninteresting, updated_at)
			VALUES (?, ?, CASE WHEN json_valid(?2) THEN COALESCE(json_extract(?2, '$.uninteresting'), 0) ELSE 0 END, strftime('%s', 'now'))
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				uninteresting = excluded.uninteresting,
				updated_at = excluded.updated_at
		`, key, string(value))
	} else {
		_, err = t.d.db.ExecContext(ctx, `
			INSERT INTO `+t.name+` (key, value, updated_at)
			VALUES (?, ?, strftime('%s', 'now'))
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, string(value))
	}
	if err != nil {
		return apperr.Internal("database."+t.name+".put", err)
	}
	return nil
}

// Scan implements index.KV. Keys are visited in ascending order.
func (t *Table) Scan(ctx context.Context, fn func(key string, value []byte) error) error {
	start := time.Now()
	var err error
	defer func() { recordOp(t.name+".scan", start, err) }()

	t.d.mu.RLock()
	defer t.d.mu.RUnlock()

	rows, err := t.d.db.QueryContext(ctx, "SELECT key, value FROM "+t.name+" ORDER BY key")
	if err != nil {
		return apperr.Internal("database."+t.name+".scan", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return apperr.Internal("database."+t.name+".scan", err)
		}
		if err = fn(key, []byte(value)); err != nil {
			return err
		}
	}
	if err = rows.Err(); err != nil {
		return apperr.Internal("database."+t.name+".scan", err)
	}
	return nil
}

// recordOp records store operation metrics.
func recordOp(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(Backend, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(Backend, operation).Observe(time.Since(start).Seconds())
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		if p == dbPath {
			continue
		}
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
