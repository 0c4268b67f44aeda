// Package workers provides worker-count heuristics for the scan
// pipeline.
//
// Count derives pool sizes from GOMAXPROCS with a task-type
// multiplier, honoring container CPU limits. ArchiveBudget computes
// the per-archive entry concurrency: a budget that grows with
// available CPUs for small archives and shrinks for archives with
// many entries or a large byte size, where parallel decompression
// would otherwise saturate memory and disk.
package workers
