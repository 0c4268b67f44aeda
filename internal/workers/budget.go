package workers

import "runtime"

const (
	// budgetCap is the hard upper bound on per-archive entry workers.
	budgetCap = 16
	// budgetFloor keeps at least two entry workers even for huge archives.
	budgetFloor = 2

	largeEntryCount  = 500
	largeArchiveSize = 500 * 1024 * 1024
)

// ArchiveBudget computes the per-archive entry-processing concurrency
// from the archive's entry count and total byte size. Small archives
// get up to 2x the processor count (capped at 16); large entry counts
// or large archives are throttled down to a floor of 2 to bound memory
// and avoid saturating slow storage.
func ArchiveBudget(entryCount int, archiveSize int64) int {
	budget := runtime.GOMAXPROCS(0) * 2
	if budget > budgetCap {
		budget = budgetCap
	}

	if entryCount > largeEntryCount {
		budget /= 2
	}
	if archiveSize > largeArchiveSize {
		budget /= 2
	}

	if budget < budgetFloor {
		budget = budgetFloor
	}
	if entryCount > 0 && budget > entryCount {
		budget = entryCount
	}
	return budget
}
