//go:build !cgo

package thumbnail

import (
	"fmt"
	"image"
)

// InitVips reports libvips as unavailable in builds without cgo; the
// generator falls back to the pure-Go decode path.
func InitVips() error {
	return fmt.Errorf("libvips support requires cgo")
}

// ShutdownVips is a no-op in builds without cgo.
func ShutdownVips() {}

// IsVipsAvailable returns whether libvips is initialized and available.
func IsVipsAvailable() bool {
	return false
}

// loadFileWithVips always fails in builds without cgo.
func loadFileWithVips(path string, targetWidth, targetHeight int) (image.Image, error) {
	return nil, fmt.Errorf("libvips not available")
}
