package startup

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSplitDirs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"/a", []string{"/a"}},
		{"/a,/b", []string{"/a", "/b"}},
		{"/a, /b ,", []string{"/a", "/b"}},
		{"", nil},
		{",,", nil},
	}

	for _, tt := range tests {
		got := splitDirs(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("splitDirs(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitDirs(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	scanDir := t.TempDir()
	cacheDir := t.TempDir()
	dbDir := t.TempDir()

	t.Setenv("SCAN_DIRS", scanDir)
	t.Setenv("CACHE_DIR", cacheDir)
	t.Setenv("DATABASE_DIR", dbDir)
	t.Setenv("IMAGE_RATIO_THRESHOLD", "")
	t.Setenv("THUMBNAIL_SIZE", "")
	t.Setenv("SCAN_FRESHNESS", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.RatioThreshold != DefaultRatioThreshold {
		t.Errorf("RatioThreshold = %g, want %g", config.RatioThreshold, DefaultRatioThreshold)
	}
	if config.ThumbnailSize != DefaultThumbnailSize {
		t.Errorf("ThumbnailSize = %d, want %d", config.ThumbnailSize, DefaultThumbnailSize)
	}
	if config.Freshness != DefaultFreshness {
		t.Errorf("Freshness = %v, want %v", config.Freshness, DefaultFreshness)
	}
	if !config.ArchivesOnly {
		t.Error("ArchivesOnly should default to true")
	}
	if config.DatabasePath != filepath.Join(dbDir, "index.db") {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
	if !config.ThumbnailsEnabled {
		t.Error("Thumbnails should be enabled for a writable cache dir")
	}
	if config.ThumbnailConcurrency < 1 || config.ThumbnailConcurrency > MaxThumbnailConc {
		t.Errorf("ThumbnailConcurrency = %d, want 1..%d", config.ThumbnailConcurrency, MaxThumbnailConc)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SCAN_DIRS", t.TempDir()+","+t.TempDir())
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("IMAGE_RATIO_THRESHOLD", "0.75")
	t.Setenv("SCAN_FRESHNESS", "1h")
	t.Setenv("SCAN_CONCURRENCY", "4")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(config.ScanDirs) != 2 {
		t.Errorf("Expected 2 scan dirs, got %d", len(config.ScanDirs))
	}
	if config.RatioThreshold != 0.75 {
		t.Errorf("RatioThreshold = %g, want 0.75", config.RatioThreshold)
	}
	if config.Freshness != time.Hour {
		t.Errorf("Freshness = %v, want 1h", config.Freshness)
	}
	if config.ScanConcurrency != 4 {
		t.Errorf("ScanConcurrency = %d, want 4", config.ScanConcurrency)
	}
}

func TestLoadConfigInvalidThreshold(t *testing.T) {
	t.Setenv("SCAN_DIRS", t.TempDir())
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("IMAGE_RATIO_THRESHOLD", "1.5")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.RatioThreshold != DefaultRatioThreshold {
		t.Errorf("out-of-range threshold should fall back to default, got %g", config.RatioThreshold)
	}
}
