// Package imagemeta extracts pixel dimensions, format and EXIF capture
// dates from image streams.
//
// Extraction is two-tiered. The fast path reads only the first 8KB and
// parses JPEG start-of-frame markers or the PNG IHDR chunk directly,
// skipping the image decoder entirely. Streams the fast path cannot
// handle are buffered in full and handed to image.DecodeConfig with
// the stdlib and golang.org/x/image decoders registered; decoder
// panics from malformed headers are contained. Extraction never
// returns an error: failures degrade to zero dimensions with the
// format inferred from the file extension, so a single corrupt entry
// cannot abort a batch.
//
// The package also provides the process-local metadata Cache, a
// bounded LRU keyed by path, size and second-truncated mtime.
package imagemeta
