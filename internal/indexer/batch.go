package indexer

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// Batching thresholds tuned for spinning-disk I/O. Small working sets
// go through in one pass; large aggregates are split into progressively
// smaller batches with a rest between them so scans do not monopolize
// the disk's seek capacity.
const (
	smallWorkingSet  = 50 * 1024 * 1024
	mediumWorkingSet = 200 * 1024 * 1024
	largeWorkingSet  = 500 * 1024 * 1024
	hugeWorkingSet   = 1024 * 1024 * 1024

	maxBatchPause = 200 * time.Millisecond
)

// planBatches sorts archives by ascending size and groups them into
// batches sized by the aggregate working set.
func planBatches(archives []candidate) [][]candidate {
	if len(archives) == 0 {
		return nil
	}

	sorted := make([]candidate, len(archives))
	copy(sorted, archives)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].size != sorted[j].size {
			return sorted[i].size < sorted[j].size
		}
		return sorted[i].path < sorted[j].path
	})

	var aggregate int64
	for _, c := range sorted {
		aggregate += c.size
	}

	size := batchSizeFor(aggregate, len(sorted))
	var batches [][]candidate
	for i := 0; i < len(sorted); i += size {
		end := i + size
		if end > len(sorted) {
			end = len(sorted)
		}
		batches = append(batches, sorted[i:end])
	}

	logging.Debug("Planned %d batches of up to %d archives (%d bytes aggregate)",
		len(batches), size, aggregate)
	return batches
}

func batchSizeFor(aggregate int64, count int) int {
	switch {
	case aggregate < smallWorkingSet:
		return count
	case aggregate < mediumWorkingSet:
		return 8
	case aggregate < largeWorkingSet:
		return 4
	case aggregate < hugeWorkingSet:
		return 2
	default:
		return 1
	}
}

// batchPause computes the rest between batches, scaled linearly with
// the aggregate working set up to 200ms.
func batchPause(aggregate int64) time.Duration {
	if aggregate < smallWorkingSet {
		return 0
	}
	pause := time.Duration(float64(maxBatchPause) * float64(aggregate) / float64(hugeWorkingSet))
	if pause > maxBatchPause {
		pause = maxBatchPause
	}
	return pause
}

// processArchives runs the batch strategy over all discovered archives
// and returns the number persisted. Within a batch, archive opens are
// capped by the configured scan concurrency. Cancellation is checked
// between batches; in-flight archives finish.
func (idx *Indexer) processArchives(ctx context.Context, archives []candidate, state *progressState) (int, error) {
	if len(archives) == 0 {
		return 0, nil
	}

	var aggregate int64
	for _, c := range archives {
		aggregate += c.size
	}
	pause := batchPause(aggregate)
	batches := planBatches(archives)

	sem := semaphore.NewWeighted(int64(idx.opts.ScanConcurrency))
	persisted := 0

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return persisted, err
		}
		if idx.opts.Memory != nil && !idx.opts.Memory.WaitIfPaused() {
			return persisted, ctx.Err()
		}

		persisted += idx.processBatch(ctx, batch, sem, state)

		rest := pause
		if idx.opts.Memory != nil && idx.opts.Memory.ShouldThrottle() {
			// Under memory pressure, stretch the rest so the GC gets
			// a chance to reclaim before the next batch allocates.
			rest = maxBatchPause
		}
		if rest > 0 && i < len(batches)-1 {
			metrics.ScanBatchPause.Observe(rest.Seconds())
			select {
			case <-time.After(rest):
			case <-ctx.Done():
				return persisted, ctx.Err()
			}
		}
	}

	return persisted, nil
}

// processBatch handles one batch of archives. Failures are per-archive
// and never abort the batch.
func (idx *Indexer) processBatch(ctx context.Context, batch []candidate, sem *semaphore.Weighted, state *progressState) int {
	type outcome struct {
		persisted bool
	}
	results := make(chan outcome, len(batch))

	for _, c := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while waiting. Archives not yet started are
			// dropped; the count reflects only started work.
			results <- outcome{}
			continue
		}

		go func(c candidate) {
			defer sem.Release(1)

			record, err := idx.processArchive(ctx, c)
			switch {
			case err != nil:
				logging.Warn("Failed to process archive %s: %v", c.path, err)
				metrics.ArchivesProcessed.WithLabelValues("error").Inc()
				state.advance(c.path, "error")
				results <- outcome{}
			case record == nil:
				metrics.ArchivesProcessed.WithLabelValues("below_threshold").Inc()
				state.advance(c.path, "below threshold")
				results <- outcome{}
			default:
				if err := idx.db.UpsertArchive(record); err != nil {
					logging.Error("Failed to persist archive %s: %v", c.path, err)
					metrics.ArchivesProcessed.WithLabelValues("error").Inc()
					state.advance(c.path, "persist error")
					results <- outcome{}
					return
				}
				metrics.ArchivesProcessed.WithLabelValues("persisted").Inc()
				state.advance(c.path, "persisted")
				results <- outcome{persisted: true}
			}
		}(c)
	}

	persisted := 0
	for range batch {
		if r := <-results; r.persisted {
			persisted++
		}
	}
	return persisted
}
