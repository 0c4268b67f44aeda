package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archive-indexer/internal/database"
	"archive-indexer/internal/imagemeta"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/memory"
	"archive-indexer/internal/metrics"
	"archive-indexer/internal/thumbnail"
)

// Options configures a scan session. Limits are fixed at construction;
// changing concurrency mid-scan is not supported.
type Options struct {
	// ScanDirs are the configured root directories.
	ScanDirs []string
	// RatioThreshold is the minimum image-entry ratio for an archive
	// to be persisted.
	RatioThreshold float64
	// ThumbnailSize is the requested thumbnail pixel size.
	ThumbnailSize int
	// ScanConcurrency caps concurrent archive opens within a batch.
	ScanConcurrency int
	// CacheCapacity bounds the in-memory metadata cache.
	CacheCapacity int
	// Freshness is the age after which a scanned directory goes stale.
	Freshness time.Duration
	// ScanInterval is the period of the background incremental loop.
	ScanInterval time.Duration
	// ArchivesOnly disables persistence of stand-alone image files.
	ArchivesOnly bool
	// Memory optionally provides backpressure between batches.
	Memory *memory.Monitor
}

// Progress describes the state of a scan after each processed file.
type Progress struct {
	CurrentFileName string `json:"currentFileName"`
	ProcessedCount  int    `json:"processedCount"`
	TotalCount      int    `json:"totalCount"`
	Message         string `json:"message"`
	IsCompleted     bool   `json:"isCompleted"`
}

// ProgressFunc receives progress events during a scan. It is called
// from multiple goroutines and must be safe for concurrent use. A nil
// callback is allowed.
type ProgressFunc func(Progress)

// Indexer walks configured directories, processes image archives and
// stand-alone images, and persists results through the database layer.
type Indexer struct {
	db     *database.Database
	thumbs *thumbnail.Generator
	meta   *imagemeta.Cache
	opts   Options

	scanMu       sync.Mutex
	isScanning   bool
	lastScanTime time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates an Indexer. Zero option values fall back to safe
// defaults.
func New(db *database.Database, thumbs *thumbnail.Generator, opts Options) (*Indexer, error) {
	if opts.RatioThreshold <= 0 {
		opts.RatioThreshold = 0.5
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = 320
	}
	if opts.ScanConcurrency <= 0 {
		opts.ScanConcurrency = 2
	}
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = 10000
	}
	if opts.Freshness <= 0 {
		opts.Freshness = 24 * time.Hour
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = time.Hour
	}

	meta, err := imagemeta.NewCache(opts.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	return &Indexer{
		db:       db,
		thumbs:   thumbs,
		meta:     meta,
		opts:     opts,
		stopChan: make(chan struct{}),
	}, nil
}

// Scan performs a full scan of the given directories and returns the
// number of records persisted. Only one scan runs at a time; a second
// caller gets a no-op.
func (idx *Indexer) Scan(ctx context.Context, dirs []string, progress ProgressFunc) (int, error) {
	return idx.scan(ctx, dirs, progress, database.ScanTypeFull)
}

func (idx *Indexer) scan(ctx context.Context, dirs []string, progress ProgressFunc, scanType database.ScanType) (int, error) {
	if !idx.tryStartScan() {
		logging.Info("Scan already in progress, skipping")
		return 0, nil
	}
	defer idx.finishScan()

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)
	metrics.ScanRunsTotal.WithLabelValues(string(scanType)).Inc()

	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	logging.Info("Starting %s scan of %d directories", scanType, len(dirs))

	totalProcessed := 0
	state := &progressState{fn: progress}

	for _, dir := range dirs {
		processed, found, err := idx.scanDirectory(ctx, dir, state, scanType)
		totalProcessed += processed
		if err != nil {
			if ctx.Err() != nil {
				state.complete(fmt.Sprintf("Scan cancelled after %d files", totalProcessed))
				return totalProcessed, err
			}
			logging.Error("Error scanning %s: %v", dir, err)
			metrics.ScanErrors.Inc()
			continue
		}
		logging.Info("Scanned %s: %d found, %d persisted", dir, found, processed)
	}

	elapsed := time.Since(start)
	state.complete(fmt.Sprintf("Scan complete: %d persisted in %v", totalProcessed, elapsed.Round(time.Millisecond)))
	logging.Info("%s scan complete: %d records in %v", scanType, totalProcessed, elapsed)

	if count, err := idx.db.CountArchives(ctx); err == nil {
		logging.Debug("Index now holds %d archives", count)
	}

	return totalProcessed, nil
}

// scanDirectory runs discovery and processing for one root and records
// its scan history. Returns (persisted, discovered, error).
func (idx *Indexer) scanDirectory(ctx context.Context, dir string, state *progressState, scanType database.ScanType) (int, int, error) {
	start := time.Now()

	images, archives, err := discover(ctx, dir)
	if err != nil {
		return 0, 0, err
	}
	found := len(images) + len(archives)
	state.addTotal(found)

	processed := 0

	n, err := idx.processArchives(ctx, archives, state)
	processed += n
	if err != nil {
		return processed, found, err
	}

	if idx.opts.ArchivesOnly {
		// Stand-alone images are discovered but not persisted under
		// the archives-only policy. They still count as seen.
		state.skip(len(images))
	} else {
		n, err = idx.processImages(ctx, images, state)
		processed += n
		if err != nil {
			return processed, found, err
		}
	}

	// The walk succeeded, so the discovered set is authoritative for
	// this root: anything indexed under it that the walk did not see
	// has been deleted from disk.
	idx.reconcileDirectory(ctx, dir, images, archives)

	history := &database.ScanHistoryRecord{
		Directory:      dir,
		ScannedAt:      time.Now(),
		FileCount:      found,
		ProcessedCount: processed,
		Elapsed:        time.Since(start),
		ScanType:       scanType,
	}
	if err := idx.db.InsertScanHistory(history); err != nil {
		logging.Error("Failed to record scan history for %s: %v", dir, err)
	}

	return processed, found, nil
}

func (idx *Indexer) tryStartScan() bool {
	idx.scanMu.Lock()
	defer idx.scanMu.Unlock()
	if idx.isScanning {
		return false
	}
	idx.isScanning = true
	return true
}

func (idx *Indexer) finishScan() {
	idx.scanMu.Lock()
	defer idx.scanMu.Unlock()
	idx.isScanning = false
	idx.lastScanTime = time.Now()
}

// IsScanning reports whether a scan is currently in progress.
func (idx *Indexer) IsScanning() bool {
	idx.scanMu.Lock()
	defer idx.scanMu.Unlock()
	return idx.isScanning
}

// LastScanTime returns when the most recent scan finished.
func (idx *Indexer) LastScanTime() time.Time {
	idx.scanMu.Lock()
	defer idx.scanMu.Unlock()
	return idx.lastScanTime
}

// Start launches the background scan loop: one initial full scan of
// the configured directories, then periodic incremental passes.
func (idx *Indexer) Start(ctx context.Context) {
	go func() {
		logging.Info("Starting initial scan in background")
		if _, err := idx.Scan(ctx, idx.opts.ScanDirs, nil); err != nil {
			logging.Error("Initial scan failed: %v", err)
		}
		idx.periodicScan(ctx)
	}()
}

// Stop terminates the background loop. In-flight work finishes.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

func (idx *Indexer) periodicScan(ctx context.Context) {
	ticker := time.NewTicker(idx.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic incremental scan triggered")
			if _, err := idx.ScanIncremental(ctx, idx.opts.ScanDirs, nil); err != nil {
				logging.Error("Periodic scan failed: %v", err)
			}
		case <-idx.stopChan:
			logging.Info("Background scan loop stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// progressState aggregates counts across directories and fans events
// out to the caller's callback.
type progressState struct {
	fn        ProgressFunc
	mu        sync.Mutex
	processed int
	total     int
}

func (p *progressState) addTotal(n int) {
	p.mu.Lock()
	p.total += n
	p.mu.Unlock()
}

// advance records one completed file and emits a progress event.
func (p *progressState) advance(fileName, message string) {
	p.mu.Lock()
	p.processed++
	event := Progress{
		CurrentFileName: fileName,
		ProcessedCount:  p.processed,
		TotalCount:      p.total,
		Message:         message,
	}
	p.mu.Unlock()

	if p.fn != nil {
		p.fn(event)
	}
}

// skip counts files that were seen but intentionally not processed.
func (p *progressState) skip(n int) {
	p.mu.Lock()
	p.processed += n
	p.mu.Unlock()
	metrics.ScanFilesSkipped.Add(float64(n))
}

func (p *progressState) complete(message string) {
	p.mu.Lock()
	event := Progress{
		ProcessedCount: p.processed,
		TotalCount:     p.total,
		Message:        message,
		IsCompleted:    true,
	}
	p.mu.Unlock()

	if p.fn != nil {
		p.fn(event)
	}
}
