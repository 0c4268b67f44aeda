package filetypes

import (
	"path/filepath"
	"strings"
)

const (
	// MaxEntrySize is the hard size cap for entries inside archives.
	MaxEntrySize = 50 * 1024 * 1024
	// MaxFileSize is the hard size cap for stand-alone files.
	MaxFileSize = 100 * 1024 * 1024
)

// junkNames are OS metadata files that show up inside archives and
// directories but are never real content.
var junkNames = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	"desktop.ini": true,
	".directory":  true,
	"ehthumbs.db": true,
	".picasa.ini": true,
}

// IsValidEntry reports whether an archive entry path and size pass the
// cheap pre-filters. It does string and size checks only, no I/O, since
// it runs once per entry in potentially large archives. Entry paths are
// untrusted, so traversal sequences and absolute paths are rejected.
func IsValidEntry(path string, size int64) bool {
	if !checkBasics(path, size, MaxEntrySize) {
		return false
	}

	// Archive entries use forward slashes regardless of platform.
	norm := strings.ReplaceAll(path, "\\", "/")
	if strings.HasPrefix(norm, "/") {
		return false
	}
	for _, part := range strings.Split(norm, "/") {
		if part == ".." {
			return false
		}
	}
	if len(norm) >= 2 && norm[1] == ':' {
		// Windows drive letter prefix
		return false
	}

	return ImageExtensions[strings.ToLower(filepath.Ext(norm))]
}

// IsValidFile reports whether a discovered stand-alone file passes the
// pre-filters with the larger per-file size cap. Paths here come from
// our own directory walk, so absolute paths are expected and both image
// and archive extensions qualify.
func IsValidFile(path string, size int64) bool {
	if !checkBasics(path, size, MaxFileSize) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ImageExtensions[ext] || ArchiveExtensions[ext]
}

func checkBasics(path string, size int64, maxSize int64) bool {
	if path == "" {
		return false
	}
	if size <= 0 || size > maxSize {
		return false
	}
	if strings.ContainsRune(path, 0) {
		return false
	}

	name := strings.ToLower(filepath.Base(strings.ReplaceAll(path, "\\", "/")))
	if junkNames[name] || strings.HasPrefix(name, "._") {
		return false
	}
	return true
}
