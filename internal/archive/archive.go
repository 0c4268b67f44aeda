package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Entry describes a single file stored inside a container.
type Entry struct {
	// Path is the entry's internal path, using forward slashes.
	Path string
	// Size is the uncompressed size in bytes.
	Size int64
}

// Reader provides access to the entries of an opened container.
// OpenEntry is safe for concurrent use: entry readers are independent
// of each other and of the entry listing.
type Reader interface {
	// Entries lists the container's file entries in archive order.
	Entries() []Entry
	// OpenEntry opens the named entry for reading.
	OpenEntry(path string) (io.ReadCloser, error)
	// Close releases the underlying file handle.
	Close() error
}

// HeaderPeeker is an optional Reader capability for formats whose
// OpenEntry cannot seek. PeekHeader returns the leading bytes of the
// named entry captured during the initial listing pass, if any were.
type HeaderPeeker interface {
	PeekHeader(path string) ([]byte, bool)
}

// ErrUnsupported is returned when no decoder matches the file extension.
var ErrUnsupported = fmt.Errorf("unsupported archive format")

// Open opens the container at path with the decoder selected by its
// extension. The container file is opened exactly once.
func Open(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz":
		return openZip(path)
	case ".rar", ".cbr":
		return openRar(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}
