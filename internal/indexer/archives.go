package indexer

import (
	"bytes"
	"context"
	"io"
	"path"
	"path/filepath"
	"sync"
	"time"

	"archive-indexer/internal/archive"
	"archive-indexer/internal/database"
	"archive-indexer/internal/imagemeta"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
	"archive-indexer/internal/workers"
)

// entryTimeout bounds metadata extraction for a single archive entry.
// Corrupt or pathological entries are skipped with default metadata
// instead of hanging a worker.
const entryTimeout = 10 * time.Second

// entryHeaderLimit bounds how much of an entry is read for metadata.
// Dimension markers live in the first few kilobytes for all supported
// formats; a full decode per entry is not worth the throughput cost.
const entryHeaderLimit = 8 * 1024

// processArchive opens one archive exactly once, filters and sorts its
// image entries, and builds an ArchiveRecord with per-entry metadata
// computed in parallel under a size-derived concurrency budget.
//
// Returns (nil, nil) when the archive's image ratio is below the
// threshold; such archives are discarded without per-entry processing
// or persistence.
func (idx *Indexer) processArchive(ctx context.Context, c candidate) (*database.ArchiveRecord, error) {
	start := time.Now()
	defer func() {
		metrics.ArchiveProcessDuration.Observe(time.Since(start).Seconds())
	}()

	r, err := archive.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	total := len(r.Entries())
	images := archive.ImageEntries(r)

	if total == 0 || float64(len(images))/float64(total) < idx.opts.RatioThreshold {
		logging.Debug("Skipping %s: %d images of %d entries", c.path, len(images), total)
		return nil, nil
	}
	ratio := float64(len(images)) / float64(total)

	budget := workers.ArchiveBudget(len(images), c.size)
	metrics.ArchiveConcurrencyBudget.Observe(float64(budget))
	logging.Debug("Processing %s: %d image entries with budget %d", c.path, len(images), budget)

	entries := idx.processEntries(r, c, images, budget)

	record := &database.ArchiveRecord{
		ID:           database.RecordID(c.path),
		Path:         c.path,
		Directory:    filepath.Dir(c.path),
		Size:         c.size,
		ModTime:      c.modTime,
		TotalEntries: total,
		ImageEntries: len(images),
		ImageRatio:   ratio,
		Entries:      entries,
	}

	if idx.thumbs.IsEnabled() {
		thumbPath, err := idx.thumbs.GetOrCreate(ctx, c.path, idx.opts.ThumbnailSize, true)
		if err != nil {
			logging.Warn("Thumbnail for %s failed: %v", c.path, err)
		}
		record.ThumbnailPath = thumbPath
	}

	return record, nil
}

// processEntries builds entry records in parallel. Result order
// matches the sorted input order regardless of completion order, so
// the stored first entry is the thumbnail source. Entries run to
// completion once started; cancellation is handled at the batch level.
func (idx *Indexer) processEntries(r archive.Reader, c candidate, images []archive.Entry, budget int) []database.ArchiveEntryRecord {
	records := make([]database.ArchiveEntryRecord, len(images))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < budget; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = idx.entryRecord(r, c, images[i])
			}
		}()
	}

	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	metrics.ArchiveEntriesProcessed.Add(float64(len(images)))
	return records
}

// entryRecord computes one entry's metadata, consulting the shared
// cache first. Extraction reads only a bounded header from the entry
// and is guarded by entryTimeout; on timeout or error the entry gets
// extension-derived defaults with unknown dimensions.
func (idx *Indexer) entryRecord(r archive.Reader, c candidate, entry archive.Entry) database.ArchiveEntryRecord {
	record := database.ArchiveEntryRecord{
		Path:     entry.Path,
		FileName: path.Base(entry.Path),
		Size:     entry.Size,
	}

	key := imagemeta.CacheKey(c.path+"!"+entry.Path, entry.Size, c.modTime)
	if meta, ok := idx.meta.Get(key); ok {
		record.Width = meta.Width
		record.Height = meta.Height
		return record
	}

	// Sequential formats buffer entry headers at open time; parsing
	// from memory avoids re-decoding the container per entry.
	if p, ok := r.(archive.HeaderPeeker); ok {
		if header, ok := p.PeekHeader(entry.Path); ok {
			meta := imagemeta.Extract(bytes.NewReader(header), entry.Path)
			if meta.Width > 0 {
				record.Width = meta.Width
				record.Height = meta.Height
			}
			idx.meta.Put(key, meta)
			return record
		}
	}

	result := make(chan imagemeta.Metadata, 1)
	go func() {
		rc, err := r.OpenEntry(entry.Path)
		if err != nil {
			logging.Debug("Failed to open entry %s in %s: %v", entry.Path, c.path, err)
			result <- imagemeta.Metadata{}
			return
		}
		defer rc.Close()

		result <- imagemeta.Extract(io.LimitReader(rc, entryHeaderLimit), entry.Path)
	}()

	timer := time.NewTimer(entryTimeout)
	defer timer.Stop()

	select {
	case meta := <-result:
		if meta.Width > 0 {
			record.Width = meta.Width
			record.Height = meta.Height
		}
		idx.meta.Put(key, meta)
	case <-timer.C:
		logging.Warn("Metadata extraction timed out for %s in %s", entry.Path, c.path)
		metrics.ArchiveEntryTimeouts.Inc()
	}

	return record
}
