package thumbnail

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for cache path derivation, not security
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"archive-indexer/internal/archive"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// jpegQuality is the re-encode quality for generated thumbnails.
	jpegQuality = 85
	// overscale renders thumbnails modestly larger than requested so a
	// viewer can upscale them slightly without visible quality loss.
	overscale = 1.2
	// maxCandidates bounds how many archive entries are tried before
	// giving up on a thumbnail for that archive.
	maxCandidates = 5
)

// Generator produces downscaled JPEG thumbnails on disk, one per
// (source, size) pair. Concurrent requests for the same artifact are
// deduplicated; generation concurrency is capped process-wide,
// independent of the scanner's own limits.
type Generator struct {
	cacheDir string
	enabled  bool
	sem      *semaphore.Weighted
	group    singleflight.Group
}

// New creates a Generator writing into cacheDir with at most
// concurrency simultaneous generation operations.
func New(cacheDir string, concurrency int, enabled bool) *Generator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if enabled {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logging.Warn("thumbnail: failed to create cache dir: %v", err)
			enabled = false
		}
	}
	return &Generator{
		cacheDir: cacheDir,
		enabled:  enabled,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// IsEnabled reports whether the generator has a writable cache.
func (g *Generator) IsEnabled() bool {
	return g.enabled
}

// CachePath returns the deterministic on-disk location of the
// thumbnail for sourcePath at the given pixel size. The layout
// (size_<N>/<hash>_<size>[_archive].jpg) is a durable contract;
// external viewers read it directly.
func (g *Generator) CachePath(sourcePath string, size int, isArchive bool) string {
	hash := md5.Sum([]byte(filepath.Clean(sourcePath))) //nolint:gosec // cache key only
	suffix := ""
	if isArchive {
		suffix = "_archive"
	}
	name := fmt.Sprintf("%x_%d%s.jpg", hash, size, suffix)
	return filepath.Join(g.cacheDir, fmt.Sprintf("size_%d", size), name)
}

// GetOrCreate returns the path of the thumbnail for sourcePath,
// generating it if it is missing or older than the source. Decode
// failures are skippable: the empty string with a nil error means "no
// thumbnail for this source". A non-nil error is returned only for
// inaccessible sources and cache I/O problems.
func (g *Generator) GetOrCreate(ctx context.Context, sourcePath string, size int, isArchive bool) (string, error) {
	if !g.enabled {
		return "", nil
	}

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("thumbnail source not accessible: %w", err)
	}

	cachePath := g.CachePath(sourcePath, size, isArchive)
	if fresh(cachePath, srcInfo.ModTime()) {
		metrics.ThumbnailCacheHits.Inc()
		return cachePath, nil
	}

	// Collapse concurrent requests for the same artifact into one
	// generation; every caller gets the winner's result. The flight
	// runs detached from the winning caller's context so one caller
	// being cancelled does not fail the waiters sharing the result.
	flightCtx := context.WithoutCancel(ctx)
	result, err, shared := g.group.Do(cachePath, func() (interface{}, error) {
		if fresh(cachePath, srcInfo.ModTime()) {
			metrics.ThumbnailCacheHits.Inc()
			return cachePath, nil
		}
		return g.generate(flightCtx, sourcePath, cachePath, size, isArchive)
	})
	if shared {
		metrics.ThumbnailGenerations.WithLabelValues("dedup").Inc()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// fresh reports whether the cached artifact exists and is at least as
// new as the source.
func fresh(cachePath string, sourceModTime time.Time) bool {
	info, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	return !info.ModTime().Before(sourceModTime)
}

// generate decodes the source, scales it and writes the artifact.
func (g *Generator) generate(ctx context.Context, sourcePath, cachePath string, size int, isArchive bool) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)

	start := time.Now()

	var img image.Image
	if isArchive {
		img = g.decodeArchive(sourcePath)
	} else {
		img = g.decodeFile(sourcePath, size)
	}
	if img == nil {
		metrics.ThumbnailGenerations.WithLabelValues("error").Inc()
		return "", nil
	}

	target := int(float64(size) * overscale)
	thumb := imaging.Fit(img, target, target, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		logging.Warn("thumbnail: encode failed for %s: %v", sourcePath, err)
		metrics.ThumbnailGenerations.WithLabelValues("error").Inc()
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	// Write-then-rename keeps readers from ever seeing a partial file.
	tmp := cachePath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		return "", fmt.Errorf("failed to move thumbnail into place: %w", err)
	}

	metrics.ThumbnailGenerations.WithLabelValues("success").Inc()
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	logging.Debug("thumbnail: generated %s in %v", cachePath, time.Since(start))
	return cachePath, nil
}

// decodeFile decodes a stand-alone image, preferring the libvips
// decode-time shrink when available.
func (g *Generator) decodeFile(path string, size int) image.Image {
	if IsVipsAvailable() {
		target := int(float64(size) * overscale)
		img, err := loadFileWithVips(path, target, target)
		if err == nil {
			return img
		}
		logging.Debug("thumbnail: vips decode failed for %s, falling back: %v", path, err)
	}

	img, err := decodeGuarded(func() (image.Image, error) {
		return imaging.Open(path, imaging.AutoOrientation(true))
	})
	if err != nil {
		logging.Warn("thumbnail: decode failed for %s: %v", path, err)
		return nil
	}
	return img
}

// decodeArchive opens the container once and tries its sorted image
// entries in order, moving to the next candidate on decode failure.
func (g *Generator) decodeArchive(path string) image.Image {
	r, err := archive.Open(path)
	if err != nil {
		logging.Warn("thumbnail: failed to open archive %s: %v", path, err)
		return nil
	}
	defer r.Close()

	entries := archive.ImageEntries(r)
	attempts := len(entries)
	if attempts > maxCandidates {
		attempts = maxCandidates
	}

	for i := 0; i < attempts; i++ {
		img := decodeEntry(r, entries[i].Path)
		if img != nil {
			return img
		}
		logging.Debug("thumbnail: candidate %s in %s failed, trying next", entries[i].Path, path)
	}

	logging.Warn("thumbnail: no decodable image among %d candidates in %s", attempts, path)
	return nil
}

func decodeEntry(r archive.Reader, entryPath string) image.Image {
	rc, err := r.OpenEntry(entryPath)
	if err != nil {
		logging.Debug("thumbnail: failed to open entry %s: %v", entryPath, err)
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logging.Debug("thumbnail: failed to read entry %s: %v", entryPath, err)
		return nil
	}

	img, err := decodeGuarded(func() (image.Image, error) {
		return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	})
	if err != nil {
		logging.Debug("thumbnail: failed to decode entry %s: %v", entryPath, err)
		return nil
	}
	return img
}

// decodeGuarded contains decoder panics (pixel-count overflow from
// corrupted headers) and reports them as plain errors.
func decodeGuarded(decode func() (image.Image, error)) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return decode()
}
