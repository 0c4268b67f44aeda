// Package startup handles configuration loading and startup logging.
//
// Configuration is read from environment variables into an explicit
// Config struct; every tunable the pipeline consumes (scan roots,
// thumbnail size, image-ratio threshold, concurrency limits, cache
// capacity, freshness threshold) is an enumerated field that is fixed
// once a scan session starts. LoadConfig also resolves and verifies
// the cache and database directories, degrading gracefully when the
// thumbnail directory is unavailable.
package startup
