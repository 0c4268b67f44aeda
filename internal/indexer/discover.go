package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"archive-indexer/internal/filetypes"
	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// candidate is a discovered file that passed the validator.
type candidate struct {
	path    string
	size    int64
	modTime time.Time
}

// discover walks one root directory and partitions qualifying files
// into stand-alone images and archives. Unreadable paths are logged
// and skipped; the walk continues.
func discover(ctx context.Context, root string) (images, archives []candidate, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fileType := filetypes.GetFileType(path)
		if fileType == filetypes.FileTypeOther {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		if !filetypes.IsValidFile(path, info.Size()) {
			metrics.ScanFilesSkipped.Inc()
			return nil
		}

		c := candidate{path: path, size: info.Size(), modTime: info.ModTime()}
		switch fileType {
		case filetypes.FileTypeImage:
			images = append(images, c)
		case filetypes.FileTypeArchive:
			archives = append(archives, c)
		}
		metrics.ScanFilesDiscovered.WithLabelValues(string(fileType)).Inc()

		return nil
	})

	if walkErr != nil {
		return images, archives, walkErr
	}
	if ctx.Err() != nil {
		return images, archives, ctx.Err()
	}

	logging.Debug("Discovered %d images, %d archives under %s", len(images), len(archives), root)
	return images, archives, nil
}
