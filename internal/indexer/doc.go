// Package indexer implements the directory scan pipeline: discovery
// of image and archive files under configured roots, per-archive entry
// processing with a size-derived concurrency budget, disk-aware
// batching tuned for spinning storage, and incremental re-scan
// planning against recorded scan history.
//
// An archive is persisted only when at least half of its entries
// (configurable) are images; everything else is discarded after the
// ratio check. Scans are idempotent: records are keyed by a stable
// hash of the file path, so re-scanning unchanged content inserts
// nothing new.
package indexer
