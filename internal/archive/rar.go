package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nwaples/rardecode/v2"

	"archive-indexer/internal/filetypes"
)

// headerPeekSize is how much of each image entry's body is buffered
// during the listing pass, enough for dimension headers.
const headerPeekSize = 8 << 10

// rarReader adapts the sequential rardecode API to the Reader
// interface. The entry list is gathered in a single header pass when
// the container is opened; OpenEntry has to rewind, which means a
// fresh decoder per call. To spare callers that re-decode, the listing
// pass also buffers the leading bytes of every image entry.
type rarReader struct {
	path    string
	entries []Entry
	headers map[string][]byte
}

func openRar(path string) (Reader, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar %s: %w", path, err)
	}
	defer rc.Close()

	var entries []Entry
	headers := make(map[string][]byte)
	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar headers in %s: %w", path, err)
		}
		if hdr.IsDir {
			continue
		}
		name := strings.ReplaceAll(hdr.Name, "\\", "/")
		entries = append(entries, Entry{
			Path: name,
			Size: hdr.UnPackedSize,
		})
		if filetypes.IsValidEntry(name, hdr.UnPackedSize) {
			buf := make([]byte, headerPeekSize)
			n, err := io.ReadFull(rc, buf)
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				continue
			}
			headers[name] = buf[:n]
		}
	}

	return &rarReader{path: path, entries: entries, headers: headers}, nil
}

// PeekHeader returns the buffered leading bytes of an image entry. The
// map is read-only after open, so this is safe for concurrent use.
func (r *rarReader) PeekHeader(path string) ([]byte, bool) {
	b, ok := r.headers[path]
	return b, ok
}

func (r *rarReader) Entries() []Entry {
	return r.entries
}

func (r *rarReader) OpenEntry(path string) (io.ReadCloser, error) {
	rc, err := rardecode.OpenReader(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen rar %s: %w", r.path, err)
	}

	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to seek rar entry %s: %w", path, err)
		}
		if !hdr.IsDir && strings.ReplaceAll(hdr.Name, "\\", "/") == path {
			return &rarEntry{rc: rc}, nil
		}
	}

	rc.Close()
	return nil, fmt.Errorf("entry %s: %w", path, os.ErrNotExist)
}

func (r *rarReader) Close() error {
	// The header-scan handle is already closed; nothing is held open.
	return nil
}

// rarEntry reads the current archive position and closes the decoder
// with it.
type rarEntry struct {
	rc *rardecode.ReadCloser
}

func (e *rarEntry) Read(p []byte) (int, error) {
	return e.rc.Read(p)
}

func (e *rarEntry) Close() error {
	return e.rc.Close()
}
