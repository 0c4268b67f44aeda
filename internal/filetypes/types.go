package filetypes

import (
	"path/filepath"
	"strings"
)

// FileType classifies a candidate file discovered during a scan.
type FileType string

const (
	// FileTypeImage represents a stand-alone image file.
	FileTypeImage FileType = "image"
	// FileTypeArchive represents a ZIP/RAR image container.
	FileTypeArchive FileType = "archive"
	// FileTypeOther represents an unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// ArchiveExtensions maps file extensions to whether they are supported archive formats.
var ArchiveExtensions = map[string]bool{
	".zip": true,
	".cbz": true,
	".rar": true,
	".cbr": true,
}

// GetFileType classifies a path by its extension.
func GetFileType(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ImageExtensions[ext]:
		return FileTypeImage
	case ArchiveExtensions[ext]:
		return FileTypeArchive
	default:
		return FileTypeOther
	}
}

// IsImage reports whether the path has a supported image extension.
func IsImage(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsArchive reports whether the path has a supported archive extension.
func IsArchive(path string) bool {
	return ArchiveExtensions[strings.ToLower(filepath.Ext(path))]
}

// Format returns a short lowercase format name inferred from the
// extension, e.g. "jpeg" for .jpg/.jpeg. Used as the fast metadata
// path for in-archive entries where the stream is never decoded.
func Format(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".tif", ".tiff":
		return "tiff"
	case "":
		return "unknown"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
