package database

import (
	"crypto/md5" //nolint:gosec // MD5 used for deterministic record IDs, not security
	"fmt"
	"path/filepath"
	"time"
)

// ScanType distinguishes full scans from incremental ones in history.
type ScanType string

const (
	// ScanTypeFull is a complete scan of a directory.
	ScanTypeFull ScanType = "full"
	// ScanTypeIncremental is a freshness-driven re-scan.
	ScanTypeIncremental ScanType = "incremental"
)

// RecordID derives the stable identity of a record from its absolute
// file path. Re-scanning the same path always maps to the same row, so
// upserts overwrite instead of duplicating.
func RecordID(path string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(filepath.Clean(path)))) //nolint:gosec // identity key only
}

// ArchiveRecord represents one scanned archive container and its
// qualifying image entries.
type ArchiveRecord struct {
	ID            string
	Path          string
	Directory     string
	Size          int64
	ModTime       time.Time
	TotalEntries  int
	ImageEntries  int
	ImageRatio    float64
	ThumbnailPath string
	Entries       []ArchiveEntryRecord
}

// ArchiveEntryRecord represents a single image inside an archive.
// Width and height are usually zero: in-archive entries use the
// extension-only fast metadata path.
type ArchiveEntryRecord struct {
	Path     string
	FileName string
	Size     int64
	Width    int
	Height   int
}

// ImageRecord represents a stand-alone image file outside any archive.
type ImageRecord struct {
	ID            string
	Path          string
	Directory     string
	FileName      string
	Size          int64
	ModTime       time.Time
	Width         int
	Height        int
	Format        string
	CaptureDate   *time.Time
	ThumbnailPath string
}

// ScanHistoryRecord is one append-only row per (directory, scan).
type ScanHistoryRecord struct {
	ID             int64
	Directory      string
	ScannedAt      time.Time
	FileCount      int
	ProcessedCount int
	Elapsed        time.Duration
	ScanType       ScanType
}
