package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"archive-indexer/internal/database"
	"archive-indexer/internal/filetypes"
	"archive-indexer/internal/imagemeta"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// processImages extracts metadata for stand-alone image files and
// streams the records into the database. Records flow through a
// channel so a long scan persists partial progress instead of
// accumulating the full result set in memory.
func (idx *Indexer) processImages(ctx context.Context, images []candidate, state *progressState) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}

	// A failed flush ends the stream before the channel closes;
	// cancelling sendCtx on return unblocks any senders still waiting
	// so they do not leak.
	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan database.ImageRecord)

	var wg sync.WaitGroup
	jobs := make(chan candidate)

	for w := 0; w < idx.opts.ScanConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				select {
				case records <- idx.imageRecord(sendCtx, c):
					state.advance(c.path, "extracted")
				case <-sendCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(records)
		defer wg.Wait()
		defer close(jobs)
		for _, c := range images {
			select {
			case jobs <- c:
			case <-sendCtx.Done():
				return
			}
		}
	}()

	return idx.db.StreamInsertImages(ctx, records)
}

// imageRecord builds one ImageRecord, using the metadata cache and
// falling back to extension-derived defaults on extraction failure.
func (idx *Indexer) imageRecord(ctx context.Context, c candidate) database.ImageRecord {
	record := database.ImageRecord{
		ID:        database.RecordID(c.path),
		Path:      c.path,
		Directory: filepath.Dir(c.path),
		FileName:  filepath.Base(c.path),
		Size:      c.size,
		ModTime:   c.modTime,
		Format:    filetypes.Format(c.path),
	}

	key := imagemeta.CacheKey(c.path, c.size, c.modTime)
	meta, ok := idx.meta.Get(key)
	if !ok {
		meta = idx.extractFileMeta(c.path)
		idx.meta.Put(key, meta)
	}

	if meta.Width > 0 {
		record.Width = meta.Width
		record.Height = meta.Height
	}
	if meta.Format != "" {
		record.Format = meta.Format
	}
	if meta.HasCaptureDate {
		captureDate := meta.CaptureDate
		record.CaptureDate = &captureDate
	}

	if idx.thumbs.IsEnabled() {
		thumbPath, err := idx.thumbs.GetOrCreate(ctx, c.path, idx.opts.ThumbnailSize, false)
		if err != nil {
			logging.Warn("Thumbnail for %s failed: %v", c.path, err)
		}
		record.ThumbnailPath = thumbPath
	}

	return record
}

func (idx *Indexer) extractFileMeta(path string) imagemeta.Metadata {
	f, err := os.Open(path)
	if err != nil {
		logging.Warn("Failed to open %s for metadata: %v", path, err)
		metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
		return imagemeta.Metadata{Format: filetypes.Format(path)}
	}
	defer f.Close()

	return imagemeta.Extract(f, path)
}
