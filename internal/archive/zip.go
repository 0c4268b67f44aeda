package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
)

type zipReader struct {
	rc      *zip.ReadCloser
	entries []Entry
}

func openZip(path string) (Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Path: strings.ReplaceAll(f.Name, "\\", "/"),
			Size: int64(f.UncompressedSize64), //nolint:gosec // bounded by validator caps downstream
		})
	}

	return &zipReader{rc: rc, entries: entries}, nil
}

func (z *zipReader) Entries() []Entry {
	return z.entries
}

func (z *zipReader) OpenEntry(path string) (io.ReadCloser, error) {
	for _, f := range z.rc.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == path {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("entry %s: %w", path, os.ErrNotExist)
}

func (z *zipReader) Close() error {
	return z.rc.Close()
}
