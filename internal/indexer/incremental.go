package indexer

import (
	"context"
	"os"
	"strings"
	"time"

	"archive-indexer/internal/database"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// ScanPlan is the outcome of comparing configured directories against
// recorded scan state.
type ScanPlan struct {
	// ToScan holds configured directories with no scan history or a
	// stale one.
	ToScan []string
	// ToPurge holds recorded directories that are no longer configured
	// or no longer exist on disk.
	ToPurge []string
}

// PlanScan decides which directories need (re-)scanning and which must
// be purged. A directory is scanned when it has never been scanned or
// its last scan is older than the freshness threshold. A recorded
// directory is purged when no configured root covers it, or when it is
// missing from disk.
func (idx *Indexer) PlanScan(ctx context.Context, configured []string) (*ScanPlan, error) {
	plan := &ScanPlan{}

	for _, dir := range configured {
		history, err := idx.db.GetLastScanHistory(ctx, dir)
		if err != nil {
			return nil, err
		}
		switch {
		case history == nil:
			logging.Debug("Directory %s has no scan history, scheduling scan", dir)
			plan.ToScan = append(plan.ToScan, dir)
		case time.Since(history.ScannedAt) > idx.opts.Freshness:
			logging.Debug("Directory %s is stale (last scan %v), scheduling scan", dir, history.ScannedAt)
			plan.ToScan = append(plan.ToScan, dir)
		}
	}

	recorded, err := idx.recordedDirectories(ctx)
	if err != nil {
		return nil, err
	}

	for _, dir := range recorded {
		if !coveredBy(dir, configured) {
			logging.Info("Directory %s is no longer configured, scheduling purge", dir)
			plan.ToPurge = append(plan.ToPurge, dir)
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			logging.Info("Directory %s is missing from disk, scheduling purge", dir)
			plan.ToPurge = append(plan.ToPurge, dir)
		}
	}

	return plan, nil
}

// recordedDirectories returns the union of directories holding
// persisted archives and images, deduplicated.
func (idx *Indexer) recordedDirectories(ctx context.Context) ([]string, error) {
	archiveDirs, err := idx.db.GetArchiveDirectories(ctx)
	if err != nil {
		return nil, err
	}
	imageDirs, err := idx.db.GetImageDirectories(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(archiveDirs)+len(imageDirs))
	var dirs []string
	for _, dir := range append(archiveDirs, imageDirs...) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// coveredBy reports whether dir equals or sits under any of the roots.
func coveredBy(dir string, roots []string) bool {
	for _, root := range roots {
		if dir == root || strings.HasPrefix(dir, strings.TrimSuffix(root, "/")+"/") {
			return true
		}
	}
	return false
}

// Purge removes all persisted records rooted under each directory and
// deletes their thumbnail artifacts best-effort. Returns the number of
// records removed.
func (idx *Indexer) Purge(ctx context.Context, dirs []string) (int64, error) {
	var total int64

	for _, dir := range dirs {
		thumbs, err := idx.db.ThumbnailPathsByDirectory(ctx, dir)
		if err != nil {
			logging.Error("Failed to list thumbnails under %s: %v", dir, err)
		}
		for _, p := range thumbs {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				logging.Warn("Failed to remove thumbnail %s: %v", p, err)
			}
		}

		deleted, err := idx.db.CleanupItemsByDirectory(dir)
		if err != nil {
			return total, err
		}
		total += deleted
		metrics.DirectoriesPurged.Inc()
	}

	return total, nil
}

// reconcileDirectory removes index rows under dir whose files vanished
// since the previous scan, along with their thumbnail artifacts. Image
// rows are left alone under the archives-only policy, where the scan
// never sees stand-alone images. Reconciliation failures are logged
// and do not fail the scan.
func (idx *Indexer) reconcileDirectory(ctx context.Context, dir string, images, archives []candidate) {
	seen := make(map[string]bool, len(images)+len(archives))
	for _, c := range archives {
		seen[c.path] = true
	}
	includeImages := !idx.opts.ArchivesOnly
	if includeImages {
		for _, c := range images {
			seen[c.path] = true
		}
	}

	deleted, thumbs, err := idx.db.DeleteUnseenPaths(ctx, dir, seen, includeImages)
	if err != nil {
		logging.Error("Failed to reconcile %s: %v", dir, err)
		metrics.ScanErrors.Inc()
		return
	}
	for _, p := range thumbs {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove thumbnail %s: %v", p, err)
		}
	}
	if deleted > 0 {
		logging.Info("Removed %d missing files under %s", deleted, dir)
	}
}

// ScanIncremental plans against recorded state, purges stale
// directories, and scans only those needing it. Fresh directories are
// skipped entirely.
func (idx *Indexer) ScanIncremental(ctx context.Context, configured []string, progress ProgressFunc) (int, error) {
	plan, err := idx.PlanScan(ctx, configured)
	if err != nil {
		return 0, err
	}

	if len(plan.ToPurge) > 0 {
		deleted, err := idx.Purge(ctx, plan.ToPurge)
		if err != nil {
			logging.Error("Purge failed: %v", err)
		} else if deleted > 0 {
			logging.Info("Purged %d records from %d directories", deleted, len(plan.ToPurge))
			if err := idx.db.Vacuum(ctx); err != nil {
				logging.Warn("Vacuum after purge failed: %v", err)
			}
		}
	}

	if len(plan.ToScan) == 0 {
		logging.Debug("All directories fresh, nothing to scan")
		return 0, nil
	}

	return idx.scan(ctx, plan.ToScan, progress, database.ScanTypeIncremental)
}
