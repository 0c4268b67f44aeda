package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the persistence gateway the scan pipeline streams its
// results into. Writes serialize structural operations behind a
// mutex; reads run concurrently.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// New opens (or creates) the index database at dbPath. The parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode allows concurrent readers during batch writes;
	// busy_timeout prevents spurious "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000&_foreign_keys=on", dbPath)

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

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS archives (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		directory TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		total_entries INTEGER NOT NULL,
		image_entries INTEGER NOT NULL,
		image_ratio REAL NOT NULL,
		thumbnail_path TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_archives_directory ON archives(directory);
	CREATE INDEX IF NOT EXISTS idx_archives_mod_time ON archives(mod_time);

	CREATE TABLE IF NOT EXISTS archive_entries (
		archive_id TEXT NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
		entry_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		size INTEGER NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		sort_index INTEGER NOT NULL,
		PRIMARY KEY (archive_id, entry_path)
	);

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		directory TEXT NOT NULL,
		file_name TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		format TEXT,
		capture_date INTEGER,
		thumbnail_path TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_images_directory ON images(directory);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		directory TEXT NOT NULL,
		scanned_at INTEGER NOT NULL,
		file_count INTEGER NOT NULL,
		processed_count INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		scan_type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scan_history_directory ON scan_history(directory, scanned_at DESC);
	`

	execCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(execCtx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// Batch is an open transaction together with its start time. Batches
// run concurrently from the scan pipeline, so the start time lives on
// the batch rather than on the Database.
type Batch struct {
	Tx    *sql.Tx
	start time.Time
}

// BeginBatch starts a transaction for batch operations. The caller is
// responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*Batch, error) {
	d.mu.Lock()
	start := time.Now()

	// Transaction lifetime is managed by EndBatch, not by a timeout
	// context, so use the background context here.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Batch{Tx: tx, start: start}, nil
}

// EndBatch commits or rolls back a batch transaction.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := b.Tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.Tx.Commit()
}

// Vacuum reclaims free space after large purges.
func (d *Database) Vacuum(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	logging.Info("Database vacuum completed in %v", time.Since(start))
	return nil
}
