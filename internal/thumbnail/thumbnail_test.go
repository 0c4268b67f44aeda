package thumbnail

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"archive-indexer/internal/metrics"
)

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}
}

func writeTestZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCachePath(t *testing.T) {
	g := New(t.TempDir(), 2, true)

	p1 := g.CachePath("/library/vol1.zip", 320, true)
	p2 := g.CachePath("/library/vol1.zip", 320, true)
	if p1 != p2 {
		t.Error("CachePath must be deterministic")
	}

	if !strings.Contains(p1, "size_320") {
		t.Errorf("cache path should be partitioned by size: %s", p1)
	}
	if !strings.HasSuffix(p1, "_320_archive.jpg") {
		t.Errorf("archive artifact should carry the archive suffix: %s", p1)
	}

	p3 := g.CachePath("/library/photo.jpg", 320, false)
	if strings.Contains(p3, "_archive") {
		t.Errorf("non-archive artifact should not carry the archive suffix: %s", p3)
	}

	p4 := g.CachePath("/library/vol1.zip", 160, true)
	if p4 == p1 {
		t.Error("different sizes must map to different artifacts")
	}
}

func TestGetOrCreateImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 800, 600)

	g := New(filepath.Join(dir, "cache"), 2, true)

	path, err := g.GetOrCreate(context.Background(), src, 100, false)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if path == "" {
		t.Fatal("Expected a thumbnail path")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("thumbnail missing on disk: %v", err)
	}
	defer f.Close()

	config, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg artifact, got %s", format)
	}

	// 1.2x overscale of the requested 100px, aspect preserved.
	if config.Width != 120 {
		t.Errorf("Expected width 120, got %d", config.Width)
	}
	if config.Height != 90 {
		t.Errorf("Expected height 90, got %d", config.Height)
	}
}

func TestGetOrCreateCacheHit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 200, 200)

	g := New(filepath.Join(dir, "cache"), 2, true)

	path, err := g.GetOrCreate(context.Background(), src, 100, false)
	if err != nil || path == "" {
		t.Fatalf("first GetOrCreate failed: %v", err)
	}

	// Backdate the source so the artifact is strictly newer.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(src, old, old); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}

	path2, err := g.GetOrCreate(context.Background(), src, 100, false)
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if path2 != path {
		t.Errorf("cache hit returned different path: %s vs %s", path2, path)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("cache hit must not rewrite the artifact")
	}
}

func TestGetOrCreateRegenerateStale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 200, 200)

	g := New(filepath.Join(dir, "cache"), 2, true)
	cachePath := g.CachePath(src, 100, false)

	// Plant a stale bogus artifact older than the source.
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(cachePath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(cachePath, old, old); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	path, err := g.GetOrCreate(context.Background(), src, 100, false)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if path != cachePath {
		t.Fatalf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) == "stale" {
		t.Error("stale artifact was not regenerated")
	}
}

func TestGetOrCreateArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vol1.zip")
	writeTestZip(t, src, map[string][]byte{
		"b.jpg": pngBytes(t, 50, 50), // never reached; a.png sorts first
		"a.png": pngBytes(t, 400, 200),
	})

	g := New(filepath.Join(dir, "cache"), 2, true)

	path, err := g.GetOrCreate(context.Background(), src, 100, true)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if path == "" {
		t.Fatal("Expected a thumbnail for the archive")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	// 400x200 source fit into 120x120 -> 120x60: proves a.png was chosen.
	if config.Width != 120 || config.Height != 60 {
		t.Errorf("Expected 120x60 from a.png, got %dx%d", config.Width, config.Height)
	}
}

func TestGetOrCreateArchiveCandidateFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vol1.zip")
	writeTestZip(t, src, map[string][]byte{
		"001.jpg": []byte("definitely not a jpeg"),
		"002.png": pngBytes(t, 300, 300),
	})

	g := New(filepath.Join(dir, "cache"), 2, true)

	path, err := g.GetOrCreate(context.Background(), src, 100, true)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if path == "" {
		t.Error("Expected fallback to the second candidate")
	}
}

func TestGetOrCreateArchiveNoDecodable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vol1.zip")
	writeTestZip(t, src, map[string][]byte{
		"001.jpg": []byte("garbage one"),
		"002.jpg": []byte("garbage two"),
	})

	g := New(filepath.Join(dir, "cache"), 2, true)

	path, err := g.GetOrCreate(context.Background(), src, 100, true)
	if err != nil {
		t.Fatalf("decode failures must not surface as errors, got: %v", err)
	}
	if path != "" {
		t.Errorf("Expected no thumbnail, got %s", path)
	}
}

func TestGetOrCreateMissingSource(t *testing.T) {
	g := New(t.TempDir(), 2, true)

	if _, err := g.GetOrCreate(context.Background(), "/no/such/file.zip", 100, true); err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestGetOrCreateDisabled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 10, 10)

	g := New(filepath.Join(dir, "cache"), 2, false)

	path, err := g.GetOrCreate(context.Background(), src, 100, false)
	if err != nil {
		t.Fatalf("disabled generator errored: %v", err)
	}
	if path != "" {
		t.Error("disabled generator should produce no thumbnails")
	}
}

func TestGetOrCreateConcurrentDedup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 500, 500)

	g := New(filepath.Join(dir, "cache"), 2, true)

	generated := testutil.ToFloat64(metrics.ThumbnailGenerations.WithLabelValues("success"))

	const n = 8
	paths := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = g.GetOrCreate(context.Background(), src, 100, false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("caller %d got %s, want %s", i, paths[i], paths[0])
		}
	}
	if paths[0] == "" {
		t.Fatal("Expected a thumbnail path")
	}

	after := testutil.ToFloat64(metrics.ThumbnailGenerations.WithLabelValues("success"))
	if got := after - generated; got != 1 {
		t.Errorf("%d concurrent callers ran %v generations, want exactly 1", n, got)
	}
}

func TestGetOrCreateCancelledCallerGetsResult(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src, 300, 300)

	g := New(filepath.Join(dir, "cache"), 2, true)

	// The generation flight is detached from the caller's context, so
	// a cancelled caller still yields a usable shared artifact instead
	// of poisoning the flight for everyone waiting on it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := g.GetOrCreate(ctx, src, 100, false)
	if err != nil {
		t.Fatalf("GetOrCreate with cancelled caller: %v", err)
	}
	if p == "" {
		t.Fatal("Expected a thumbnail path")
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
}
