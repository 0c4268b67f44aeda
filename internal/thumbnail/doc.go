// Package thumbnail generates and caches downscaled JPEG previews for
// stand-alone images and archive containers.
//
// Thumbnails live at deterministic paths partitioned by requested
// pixel size (size_<N>/<hash>_<size>[_archive].jpg) and are reused as
// long as the artifact is at least as new as its source. Concurrent
// requests for the same artifact are collapsed into a single
// generation via singleflight, and total generation concurrency is
// capped by a weighted semaphore so CPU-bound decoding cannot starve
// the I/O-bound scanner.
//
// For archives the generator opens the container once, sorts the image
// entries with the same deterministic rule the batch processor uses,
// and tries up to five candidates before giving up. All decode
// failures are non-fatal; the caller simply gets no thumbnail.
//
// When libvips is available it is used for decode-time shrinking of
// stand-alone images; otherwise decoding falls back to the pure-Go
// imaging stack.
package thumbnail
