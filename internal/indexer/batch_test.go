package indexer

import (
	"testing"
	"time"
)

func TestBatchSizeFor(t *testing.T) {
	tests := []struct {
		name      string
		aggregate int64
		count     int
		want      int
	}{
		{"tiny set in one batch", 10 * 1024 * 1024, 40, 40},
		{"medium set", 100 * 1024 * 1024, 40, 8},
		{"large set", 300 * 1024 * 1024, 40, 4},
		{"very large set", 700 * 1024 * 1024, 40, 2},
		{"huge set one at a time", 2 * 1024 * 1024 * 1024, 40, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batchSizeFor(tt.aggregate, tt.count); got != tt.want {
				t.Errorf("batchSizeFor(%d, %d) = %d, want %d", tt.aggregate, tt.count, got, tt.want)
			}
		})
	}
}

func TestBatchPauseBounds(t *testing.T) {
	if got := batchPause(1024); got != 0 {
		t.Errorf("small working set pause = %v, want 0", got)
	}
	if got := batchPause(512 * 1024 * 1024); got <= 0 || got >= 200*time.Millisecond {
		t.Errorf("mid working set pause = %v, want between 0 and 200ms", got)
	}
	if got := batchPause(10 * 1024 * 1024 * 1024); got != 200*time.Millisecond {
		t.Errorf("huge working set pause = %v, want capped at 200ms", got)
	}
}

func TestPlanBatchesSortsAscending(t *testing.T) {
	archives := []candidate{
		{path: "/c.zip", size: 300},
		{path: "/a.zip", size: 100},
		{path: "/b.zip", size: 200},
	}

	batches := planBatches(archives)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}

	var prev int64 = -1
	for _, c := range batches[0] {
		if c.size < prev {
			t.Errorf("batch not sorted by ascending size: %v", batches[0])
		}
		prev = c.size
	}
	if batches[0][0].path != "/a.zip" {
		t.Errorf("smallest archive first = %s, want /a.zip", batches[0][0].path)
	}
}

func TestPlanBatchesEmpty(t *testing.T) {
	if got := planBatches(nil); got != nil {
		t.Errorf("planBatches(nil) = %v, want nil", got)
	}
}
