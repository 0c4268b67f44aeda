// Package memory provides backpressure signals for the scan pipeline
// based on heap usage.
//
// Archive decompression and image decoding allocate aggressively; in a
// memory-limited container a large scan can otherwise drive the
// process into an OOM kill. The [Monitor] samples heap allocation
// against a soft limit (MEMORY_LIMIT_MB or GOMEMLIMIT) and exposes two
// signals: [Monitor.ShouldThrottle] above the high water mark, which
// stretches the pauses between scan batches, and [Monitor.WaitIfPaused]
// above the critical mark, which blocks new batches entirely until the
// garbage collector catches up.
//
// GOMEMLIMIT is a soft limit on Go heap only; CGO allocations from the
// image codecs are invisible to it, which is why the critical mark
// sits well below 1.0.
package memory
