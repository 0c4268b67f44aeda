package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// streamBatchSize is the number of records committed per transaction
// when inserting from a stream. Small batches keep long scans
// interruptible with partial progress durable.
const streamBatchSize = 50

// UpsertArchive inserts or replaces an archive record and its entries
// in a single transaction. The identity key is derived from the path,
// so re-scanning the same archive overwrites rather than duplicates.
func (d *Database) UpsertArchive(record *ArchiveRecord) error {
	if record.ID == "" {
		record.ID = RecordID(record.Path)
	}

	batch, err := d.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin archive upsert: %w", err)
	}

	err = d.upsertArchiveTx(batch.Tx, record)
	if endErr := d.EndBatch(batch, err); endErr != nil {
		return endErr
	}

	metrics.DBQueryTotal.WithLabelValues("upsert_archive", "success").Inc()
	return nil
}

func (d *Database) upsertArchiveTx(tx *sql.Tx, record *ArchiveRecord) error {
	query := `
	INSERT INTO archives (id, path, directory, size, mod_time, total_entries, image_entries, image_ratio, thumbnail_path, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path,
		directory = excluded.directory,
		size = excluded.size,
		mod_time = excluded.mod_time,
		total_entries = excluded.total_entries,
		image_entries = excluded.image_entries,
		image_ratio = excluded.image_ratio,
		thumbnail_path = excluded.thumbnail_path,
		updated_at = strftime('%s', 'now')
	`

	_, err := tx.Exec(query,
		record.ID,
		record.Path,
		record.Directory,
		record.Size,
		record.ModTime.Unix(),
		record.TotalEntries,
		record.ImageEntries,
		record.ImageRatio,
		record.ThumbnailPath,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert archive %s: %w", record.Path, err)
	}

	// Entries are replaced wholesale; an upsert per row cannot express
	// entries that vanished from the container.
	if _, err := tx.Exec("DELETE FROM archive_entries WHERE archive_id = ?", record.ID); err != nil {
		return fmt.Errorf("failed to clear entries for %s: %w", record.Path, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO archive_entries (archive_id, entry_path, file_name, size, width, height, sort_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range record.Entries {
		if _, err := stmt.Exec(record.ID, entry.Path, entry.FileName, entry.Size, entry.Width, entry.Height, i); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", entry.Path, err)
		}
	}

	metrics.DBRowsAffected.WithLabelValues("upsert_archive").Observe(float64(1 + len(record.Entries)))
	return nil
}

// BulkInsertImages inserts image records in one transaction, skipping
// rows whose identity already exists. Returns the number actually
// inserted; duplicate keys are a no-op, not an error, so re-scans stay
// idempotent.
func (d *Database) BulkInsertImages(records []ImageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch, err := d.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("failed to begin image insert: %w", err)
	}

	inserted, err := d.insertImagesTx(batch.Tx, records)
	if endErr := d.EndBatch(batch, err); endErr != nil {
		return 0, endErr
	}

	metrics.DBQueryTotal.WithLabelValues("bulk_insert_images", "success").Inc()
	return inserted, nil
}

func (d *Database) insertImagesTx(tx *sql.Tx, records []ImageRecord) (int, error) {
	stmt, err := tx.Prepare(`
		INSERT INTO images (id, path, directory, file_name, size, mod_time, width, height, format, capture_date, thumbnail_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare image insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			r.ID = RecordID(r.Path)
		}

		var captureDate interface{}
		if r.CaptureDate != nil {
			captureDate = r.CaptureDate.Unix()
		}

		result, err := stmt.Exec(r.ID, r.Path, r.Directory, r.FileName, r.Size, r.ModTime.Unix(),
			r.Width, r.Height, r.Format, captureDate, r.ThumbnailPath)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert image %s: %w", r.Path, err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			inserted++
		}
	}

	metrics.DBRowsAffected.WithLabelValues("insert_images").Observe(float64(inserted))
	return inserted, nil
}

// StreamInsertImages consumes records from the channel and inserts
// them in small per-transaction batches until the channel closes or
// ctx is cancelled. Committed batches stay durable on cancellation.
func (d *Database) StreamInsertImages(ctx context.Context, records <-chan ImageRecord) (int, error) {
	total := 0
	batch := make([]ImageRecord, 0, streamBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := d.BulkInsertImages(batch)
		total += n
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				logging.Error("failed to flush image batch on cancellation: %v", err)
			}
			return total, ctx.Err()
		case record, ok := <-records:
			if !ok {
				return total, flush()
			}
			batch = append(batch, record)
			if len(batch) >= streamBatchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// ExistsByID reports whether any record (archive or image) has the
// given identity. Used for cheap pre-insert duplicate avoidance.
func (d *Database) ExistsByID(ctx context.Context, id string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err := d.db.QueryRowContext(queryCtx,
		"SELECT EXISTS(SELECT 1 FROM archives WHERE id = ? UNION SELECT 1 FROM images WHERE id = ?)",
		id, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of %s: %w", id, err)
	}
	return exists, nil
}

// GetArchiveByPath retrieves one archive with its entries in stored
// sort order, or nil when absent.
func (d *Database) GetArchiveByPath(ctx context.Context, path string) (*ArchiveRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record := &ArchiveRecord{}
	var modTime int64
	var thumbnail sql.NullString

	err := d.db.QueryRowContext(queryCtx, `
		SELECT id, path, directory, size, mod_time, total_entries, image_entries, image_ratio, thumbnail_path
		FROM archives WHERE path = ?`, path,
	).Scan(&record.ID, &record.Path, &record.Directory, &record.Size, &modTime,
		&record.TotalEntries, &record.ImageEntries, &record.ImageRatio, &thumbnail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query archive %s: %w", path, err)
	}
	record.ModTime = time.Unix(modTime, 0)
	record.ThumbnailPath = thumbnail.String

	rows, err := d.db.QueryContext(queryCtx, `
		SELECT entry_path, file_name, size, width, height
		FROM archive_entries WHERE archive_id = ? ORDER BY sort_index`, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ArchiveEntryRecord
		if err := rows.Scan(&e.Path, &e.FileName, &e.Size, &e.Width, &e.Height); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		record.Entries = append(record.Entries, e)
	}
	return record, rows.Err()
}

// GetArchiveDirectories returns the distinct directories that contain
// indexed archives.
func (d *Database) GetArchiveDirectories(ctx context.Context) ([]string, error) {
	return d.distinctDirectories(ctx, "archives")
}

// GetImageDirectories returns the distinct directories that contain
// indexed stand-alone images.
func (d *Database) GetImageDirectories(ctx context.Context) ([]string, error) {
	return d.distinctDirectories(ctx, "images")
}

func (d *Database) distinctDirectories(ctx context.Context, table string) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(queryCtx, "SELECT DISTINCT directory FROM "+table+" ORDER BY directory")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s directories: %w", table, err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var dir string
		if err := rows.Scan(&dir); err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

// InsertScanHistory appends one scan-history row. History is
// append-only and never mutated.
func (d *Database) InsertScanHistory(record *ScanHistoryRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO scan_history (directory, scanned_at, file_count, processed_count, elapsed_ms, scan_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.Directory,
		record.ScannedAt.Unix(),
		record.FileCount,
		record.ProcessedCount,
		record.Elapsed.Milliseconds(),
		record.ScanType,
	)
	if err != nil {
		metrics.DBQueryTotal.WithLabelValues("insert_history", "error").Inc()
		return fmt.Errorf("failed to insert scan history: %w", err)
	}
	metrics.DBQueryTotal.WithLabelValues("insert_history", "success").Inc()
	return nil
}

// GetLastScanHistory returns the most recent scan record for the
// directory, or nil when it has never been scanned.
func (d *Database) GetLastScanHistory(ctx context.Context, directory string) (*ScanHistoryRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record := &ScanHistoryRecord{}
	var scannedAt, elapsedMS int64

	err := d.db.QueryRowContext(queryCtx, `
		SELECT id, directory, scanned_at, file_count, processed_count, elapsed_ms, scan_type
		FROM scan_history WHERE directory = ?
		ORDER BY scanned_at DESC, id DESC LIMIT 1`, directory,
	).Scan(&record.ID, &record.Directory, &scannedAt, &record.FileCount,
		&record.ProcessedCount, &elapsedMS, &record.ScanType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history for %s: %w", directory, err)
	}

	record.ScannedAt = time.Unix(scannedAt, 0)
	record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return record, nil
}

// ThumbnailPathsByDirectory returns the thumbnail artifacts referenced
// by records rooted under directory, for best-effort deletion before a
// purge.
func (d *Database) ThumbnailPathsByDirectory(ctx context.Context, directory string) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	prefix := directory + "/%"
	rows, err := d.db.QueryContext(queryCtx, `
		SELECT thumbnail_path FROM archives WHERE (directory = ? OR directory LIKE ?) AND thumbnail_path != ''
		UNION
		SELECT thumbnail_path FROM images WHERE (directory = ? OR directory LIKE ?) AND thumbnail_path != ''`,
		directory, prefix, directory, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query thumbnails under %s: %w", directory, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p sql.NullString
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail path: %w", err)
		}
		if p.Valid && p.String != "" {
			paths = append(paths, p.String)
		}
	}
	return paths, rows.Err()
}

// DeleteUnseenPaths removes archive (and optionally image) records
// rooted under directory whose file paths are absent from seen. This
// reconciles the index against files deleted from a directory that is
// still configured and still on disk. Returns the number of records
// removed and the thumbnail artifacts they referenced, for best-effort
// deletion by the caller.
func (d *Database) DeleteUnseenPaths(ctx context.Context, directory string, seen map[string]bool, includeImages bool) (int64, []string, error) {
	tables := []string{"archives"}
	if includeImages {
		tables = append(tables, "images")
	}

	var stale, thumbs []string
	for _, table := range tables {
		s, t, err := d.unseenInTable(ctx, table, directory, seen)
		if err != nil {
			return 0, nil, err
		}
		stale = append(stale, s...)
		thumbs = append(thumbs, t...)
	}
	if len(stale) == 0 {
		return 0, nil, nil
	}

	batch, err := d.BeginBatch()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin reconciliation: %w", err)
	}

	deleted, err := d.deletePathsTx(batch.Tx, stale)
	if endErr := d.EndBatch(batch, err); endErr != nil {
		return 0, nil, endErr
	}

	if deleted > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_unseen").Observe(float64(deleted))
	}
	return deleted, thumbs, nil
}

// unseenInTable lists paths under directory that the current scan did
// not see, with their thumbnail artifacts.
func (d *Database) unseenInTable(ctx context.Context, table, directory string, seen map[string]bool) ([]string, []string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	prefix := directory + "/%"
	rows, err := d.db.QueryContext(queryCtx,
		"SELECT path, thumbnail_path FROM "+table+" WHERE directory = ? OR directory LIKE ?",
		directory, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s under %s: %w", table, directory, err)
	}
	defer rows.Close()

	var stale, thumbs []string
	for rows.Next() {
		var p string
		var thumb sql.NullString
		if err := rows.Scan(&p, &thumb); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		if seen[p] {
			continue
		}
		stale = append(stale, p)
		if thumb.Valid && thumb.String != "" {
			thumbs = append(thumbs, thumb.String)
		}
	}
	return stale, thumbs, rows.Err()
}

func (d *Database) deletePathsTx(tx *sql.Tx, paths []string) (int64, error) {
	var deleted int64
	for _, table := range []string{"archives", "images"} {
		stmt, err := tx.Prepare("DELETE FROM " + table + " WHERE path = ?")
		if err != nil {
			return deleted, fmt.Errorf("failed to prepare %s delete: %w", table, err)
		}
		for _, p := range paths {
			result, err := stmt.Exec(p)
			if err != nil {
				stmt.Close()
				return deleted, fmt.Errorf("failed to delete %s from %s: %w", p, table, err)
			}
			if n, err := result.RowsAffected(); err == nil {
				deleted += n
			}
		}
		stmt.Close()
	}
	return deleted, nil
}

// CleanupItemsByDirectory deletes all archive and image records whose
// path is rooted under directory. Entry rows cascade with their
// archive. Returns the number of records removed.
func (d *Database) CleanupItemsByDirectory(directory string) (int64, error) {
	batch, err := d.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup: %w", err)
	}

	deleted, err := d.cleanupTx(batch.Tx, directory)
	if endErr := d.EndBatch(batch, err); endErr != nil {
		return 0, endErr
	}

	if deleted > 0 {
		logging.Info("Purged %d records under %s", deleted, directory)
		metrics.DBRowsAffected.WithLabelValues("cleanup_directory").Observe(float64(deleted))
	}
	return deleted, nil
}

func (d *Database) cleanupTx(tx *sql.Tx, directory string) (int64, error) {
	prefix := directory + "/%"
	var deleted int64

	for _, table := range []string{"archives", "images"} {
		result, err := tx.Exec(
			"DELETE FROM "+table+" WHERE directory = ? OR directory LIKE ?",
			directory, prefix,
		)
		if err != nil {
			return deleted, fmt.Errorf("failed to purge %s under %s: %w", table, directory, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += rows
	}

	return deleted, nil
}

// CountArchives returns the number of indexed archives.
func (d *Database) CountArchives(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int64
	if err := d.db.QueryRowContext(queryCtx, "SELECT COUNT(*) FROM archives").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archives: %w", err)
	}
	metrics.ArchivesIndexed.Set(float64(count))
	return count, nil
}
