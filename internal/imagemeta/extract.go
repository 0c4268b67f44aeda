package imagemeta

import (
	"bytes"
	"image"
	"io"
	"time"

	"archive-indexer/internal/filetypes"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"

	// Image format decoders for the fallback path
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// headerSize is how much of the stream the fast path reads.
	headerSize = 8 * 1024
	// minImageSize is the smallest stream we consider a plausible image.
	minImageSize = 100
	// maxDimension is the sanity bound on parsed width/height.
	maxDimension = 50000
)

// Metadata holds the extracted properties of a single image.
type Metadata struct {
	Width          int
	Height         int
	Format         string
	HasCaptureDate bool
	CaptureDate    time.Time
}

// Extract reads image metadata from r. It first attempts a bounded
// header parse for JPEG and PNG; if that fails it buffers the stream
// and runs the general-purpose decoder, opportunistically reading an
// EXIF capture date. Extract never fails: on any error it returns
// default metadata with the format inferred from nameHint.
func Extract(r io.Reader, nameHint string) Metadata {
	fallback := Metadata{Format: filetypes.Format(nameHint)}

	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		logging.Warn("metadata: failed to read %s: %v", nameHint, err)
		metrics.MetadataExtractions.WithLabelValues("fast", "error").Inc()
		return fallback
	}
	header = header[:n]

	if meta, ok := parseHeader(header); ok {
		metrics.MetadataExtractions.WithLabelValues("fast", "success").Inc()
		// The fast path never reads EXIF; a capture date is only worth
		// a full buffer for streams that already failed header parsing.
		return meta
	}
	metrics.MetadataExtractions.WithLabelValues("fast", "fallback").Inc()

	return extractFull(header, r, fallback)
}

// extractFull buffers the whole stream and runs the image decoder.
func extractFull(header []byte, rest io.Reader, fallback Metadata) (meta Metadata) {
	meta = fallback

	// Malformed headers can drive decoders into arithmetic overflow;
	// contain that here rather than letting it kill the batch.
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("metadata: decoder panic recovered: %v", r)
			metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
			meta = fallback
		}
	}()

	data, err := io.ReadAll(rest)
	if err != nil {
		logging.Warn("metadata: failed to buffer stream: %v", err)
		metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
		return fallback
	}
	data = append(header, data...)

	if len(data) < minImageSize {
		metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
		return fallback
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Debug("metadata: decode failed: %v", err)
		metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
		return fallback
	}

	if !saneDimensions(config.Width, config.Height) {
		metrics.MetadataExtractions.WithLabelValues("full", "error").Inc()
		return fallback
	}

	meta = Metadata{
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}

	if date, ok := captureDate(data); ok {
		meta.HasCaptureDate = true
		meta.CaptureDate = date
	}

	metrics.MetadataExtractions.WithLabelValues("full", "success").Inc()
	return meta
}

// parseHeader attempts the format-specific fast paths.
func parseHeader(header []byte) (Metadata, bool) {
	if meta, ok := parseJPEG(header); ok {
		return meta, true
	}
	if meta, ok := parsePNG(header); ok {
		return meta, true
	}
	return Metadata{}, false
}

// parseJPEG walks the JPEG segment chain looking for a start-of-frame
// marker and reads the dimensions from it.
func parseJPEG(data []byte) (Metadata, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return Metadata{}, false
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return Metadata{}, false
		}
		marker := data[pos+1]

		// Standalone markers without a length field.
		if marker == 0xFF {
			pos++
			continue
		}
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD9) {
			pos += 2
			continue
		}

		length := int(data[pos+2])<<8 | int(data[pos+3])
		if length < 2 {
			return Metadata{}, false
		}

		if isSOF(marker) {
			// Segment layout: length(2) precision(1) height(2) width(2)
			if pos+9 > len(data) {
				return Metadata{}, false
			}
			height := int(data[pos+5])<<8 | int(data[pos+6])
			width := int(data[pos+7])<<8 | int(data[pos+8])
			if !saneDimensions(width, height) {
				return Metadata{}, false
			}
			return Metadata{Width: width, Height: height, Format: "jpeg"}, true
		}

		pos += 2 + length
	}

	return Metadata{}, false
}

// isSOF reports whether marker is a start-of-frame marker. C4, C8 and
// CC look like SOF markers but are huffman/arithmetic tables.
func isSOF(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	return marker != 0xC4 && marker != 0xC8 && marker != 0xCC
}

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// parsePNG reads the width and height out of the IHDR chunk, which the
// PNG spec requires to come first.
func parsePNG(data []byte) (Metadata, bool) {
	if len(data) < 24 || !bytes.Equal(data[:8], pngSignature) {
		return Metadata{}, false
	}
	if !bytes.Equal(data[12:16], []byte("IHDR")) {
		return Metadata{}, false
	}

	width := int(data[16])<<24 | int(data[17])<<16 | int(data[18])<<8 | int(data[19])
	height := int(data[20])<<24 | int(data[21])<<16 | int(data[22])<<8 | int(data[23])
	if !saneDimensions(width, height) {
		return Metadata{}, false
	}

	return Metadata{Width: width, Height: height, Format: "png"}, true
}

func saneDimensions(width, height int) bool {
	return width > 0 && height > 0 && width <= maxDimension && height <= maxDimension
}
