package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"archive-indexer/internal/logging"
	"archive-indexer/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Default configuration values.
const (
	DefaultThumbnailSize   = 320
	DefaultRatioThreshold  = 0.5
	DefaultScanConcurrency = 2
	DefaultCacheCapacity   = 10000
	DefaultFreshness       = 24 * time.Hour
	DefaultScanInterval    = 1 * time.Hour

	// MaxThumbnailConc bounds the decode pool regardless of CPU count.
	MaxThumbnailConc = 8
)

// Config holds all application configuration. Every knob is an explicit
// field; values are fixed for the lifetime of a scan session.
type Config struct {
	ScanDirs       []string
	CacheDir       string
	DatabaseDir    string
	MetricsPort    string
	MetricsEnabled bool

	// Pipeline tuning
	ThumbnailSize        int
	RatioThreshold       float64
	ScanConcurrency      int
	ThumbnailConcurrency int
	CacheCapacity        int
	Freshness            time.Duration
	ScanInterval         time.Duration
	ArchivesOnly         bool
	ScanOnce             bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string

	ThumbnailsEnabled bool
}

// LoadConfig loads and validates configuration from environment variables.
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	scanDirs := splitDirs(getEnv("SCAN_DIRS", "/archives"))
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	thumbnailSize := getEnvInt("THUMBNAIL_SIZE", DefaultThumbnailSize)
	ratioThreshold := getEnvFloat("IMAGE_RATIO_THRESHOLD", DefaultRatioThreshold)
	scanConcurrency := getEnvInt("SCAN_CONCURRENCY", DefaultScanConcurrency)
	thumbConcurrency := getEnvInt("THUMBNAIL_CONCURRENCY", workers.ForIO(MaxThumbnailConc))
	cacheCapacity := getEnvInt("METADATA_CACHE_SIZE", DefaultCacheCapacity)
	freshness := getEnvDuration("SCAN_FRESHNESS", DefaultFreshness)
	scanInterval := getEnvDuration("SCAN_INTERVAL", DefaultScanInterval)
	archivesOnly := getEnvBool("ARCHIVES_ONLY", true)
	scanOnce := getEnvBool("SCAN_ONCE", false)

	logging.Info("  SCAN_DIRS:             %s", strings.Join(scanDirs, ", "))
	logging.Info("  CACHE_DIR:             %s", cacheDir)
	logging.Info("  DATABASE_DIR:          %s", databaseDir)
	logging.Info("  METRICS_PORT:          %s", metricsPort)
	logging.Info("  METRICS_ENABLED:       %v", metricsEnabled)
	logging.Info("  THUMBNAIL_SIZE:        %d", thumbnailSize)
	logging.Info("  IMAGE_RATIO_THRESHOLD: %.2f", ratioThreshold)
	logging.Info("  SCAN_CONCURRENCY:      %d", scanConcurrency)
	logging.Info("  THUMBNAIL_CONCURRENCY: %d", thumbConcurrency)
	logging.Info("  METADATA_CACHE_SIZE:   %d", cacheCapacity)
	logging.Info("  SCAN_FRESHNESS:        %v", freshness)
	logging.Info("  SCAN_INTERVAL:         %v", scanInterval)
	logging.Info("  ARCHIVES_ONLY:         %v", archivesOnly)
	logging.Info("  SCAN_ONCE:             %v", scanOnce)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	if len(scanDirs) == 0 {
		return nil, fmt.Errorf("SCAN_DIRS must name at least one directory")
	}
	if ratioThreshold < 0 || ratioThreshold > 1 {
		logging.Warn("  Invalid IMAGE_RATIO_THRESHOLD %.2f, using default %.2f", ratioThreshold, DefaultRatioThreshold)
		ratioThreshold = DefaultRatioThreshold
	}
	if thumbnailSize <= 0 {
		logging.Warn("  Invalid THUMBNAIL_SIZE, using default %d", DefaultThumbnailSize)
		thumbnailSize = DefaultThumbnailSize
	}
	if scanConcurrency <= 0 {
		scanConcurrency = DefaultScanConcurrency
	}
	if thumbConcurrency <= 0 {
		thumbConcurrency = workers.ForIO(MaxThumbnailConc)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for i, dir := range scanDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve scan directory %q: %w", dir, err)
		}
		scanDirs[i] = abs
		if _, err := os.Stat(abs); err != nil {
			logging.Warn("  Scan directory issue: %v", err)
		} else {
			logging.Info("  Scan directory: %s", abs)
		}
	}

	cacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		ScanDirs:             scanDirs,
		CacheDir:             cacheDir,
		DatabaseDir:          databaseDir,
		MetricsPort:          metricsPort,
		MetricsEnabled:       metricsEnabled,
		ThumbnailSize:        thumbnailSize,
		RatioThreshold:       ratioThreshold,
		ScanConcurrency:      scanConcurrency,
		ThumbnailConcurrency: thumbConcurrency,
		CacheCapacity:        cacheCapacity,
		Freshness:            freshness,
		ScanInterval:         scanInterval,
		ArchivesOnly:         archivesOnly,
		ScanOnce:             scanOnce,
		DatabasePath:         filepath.Join(databaseDir, "index.db"),
		ThumbnailDir:         filepath.Join(cacheDir, "thumbnails"),
	}

	if err := os.MkdirAll(databaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:   ENABLED (required)")
	logging.Info("    Thumbnails: %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metrics:    %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// splitDirs splits a list of directories separated by the OS path list
// separator or commas, dropping empty elements.
func splitDirs(raw string) []string {
	var dirs []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == os.PathListSeparator || r == ','
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			dirs = append(dirs, part)
		}
	}
	return dirs
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		logging.Warn("  Invalid %s=%q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		logging.Warn("  Invalid %s=%q, using default %g", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logging.Warn("  Invalid %s=%q, using default %v", key, value, fallback)
	}
	return fallback
}

func setupOptionalDir(path, name string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	return true
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("  failed to remove test file %s: %v", testFile, err)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	logging.Info("============================================================")
	logging.Info("  archive-indexer %s (%s)", Version, Commit)
	logging.Info("  built %s with %s, %s/%s", BuildTime, GoVersion, runtime.GOOS, runtime.GOARCH)
	logging.Info("============================================================")
}
