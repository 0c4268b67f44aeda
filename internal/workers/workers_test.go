package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "")

	cpus := runtime.GOMAXPROCS(0)

	if got := Count(1.0, 0); got != cpus {
		t.Errorf("Count(1.0, 0) = %d, want %d", got, cpus)
	}

	if got := Count(2.0, 0); got != cpus*2 {
		t.Errorf("Count(2.0, 0) = %d, want %d", got, cpus*2)
	}

	if got := Count(2.0, 3); got > 3 {
		t.Errorf("Count(2.0, 3) = %d, want <= 3", got)
	}

	// Multiplier that rounds to zero still yields one worker.
	if got := Count(0.001, 0); got != 1 {
		t.Errorf("Count(0.001, 0) = %d, want 1", got)
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "7")

	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Count with override = %d, want 7", got)
	}

	// Limit still applies to the override.
	if got := Count(1.0, 4); got != 4 {
		t.Errorf("Count with override and limit = %d, want 4", got)
	}
}

func TestArchiveBudget(t *testing.T) {
	full := runtime.GOMAXPROCS(0) * 2
	if full > 16 {
		full = 16
	}

	small := ArchiveBudget(full+10, 10*1024*1024)
	if small != full {
		t.Errorf("small archive budget = %d, want %d", small, full)
	}

	// Large entry count halves the budget.
	many := ArchiveBudget(1000, 10*1024*1024)
	if many >= small && small > 2 {
		t.Errorf("large entry count budget = %d, want less than %d", many, small)
	}
	if many < 2 {
		t.Errorf("budget fell below floor: %d", many)
	}

	// Large archive size and entry count together bottom out at the floor
	// (unless almost no entries).
	huge := ArchiveBudget(5000, 2*1024*1024*1024)
	if huge < 2 {
		t.Errorf("huge archive budget = %d, want >= 2", huge)
	}

	// Never more workers than entries.
	if got := ArchiveBudget(1, 1024); got != 1 {
		t.Errorf("single entry budget = %d, want 1", got)
	}
}
