package filetypes

import "testing"

func TestIsValidEntry(t *testing.T) {
	tests := []struct {
		name string
		path string
		size int64
		want bool
	}{
		{"valid jpeg", "covers/page001.jpg", 1024, true},
		{"valid png at root", "a.png", 1, true},
		{"empty path", "", 1024, false},
		{"zero size", "page.jpg", 0, false},
		{"negative size", "page.jpg", -1, false},
		{"over entry cap", "page.jpg", MaxEntrySize + 1, false},
		{"at entry cap", "page.jpg", MaxEntrySize, true},
		{"traversal", "../../../etc/passwd.jpg", 100, false},
		{"embedded traversal", "covers/../../evil.jpg", 100, false},
		{"absolute path", "/etc/shadow.png", 100, false},
		{"backslash traversal", "..\\evil.jpg", 100, false},
		{"windows drive", "c:\\temp\\x.jpg", 100, false},
		{"nul byte", "page\x00.jpg", 100, false},
		{"unsupported extension", "notes.txt", 100, false},
		{"no extension", "README", 100, false},
		{"ds_store", ".DS_Store", 100, false},
		{"macos resource fork", "dir/._page001.jpg", 100, false},
		{"thumbs db", "Thumbs.db", 100, false},
		{"case insensitive ext", "PAGE.JPG", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEntry(tt.path, tt.size); got != tt.want {
				t.Errorf("IsValidEntry(%q, %d) = %v, want %v", tt.path, tt.size, got, tt.want)
			}
		})
	}
}

func TestIsValidFileSizeCap(t *testing.T) {
	if !IsValidFile("big.jpg", MaxEntrySize+1) {
		t.Error("stand-alone files should allow sizes above the entry cap")
	}
	if IsValidFile("big.jpg", MaxFileSize+1) {
		t.Error("stand-alone files above the file cap should be rejected")
	}
}

func TestIsValidFileExtensions(t *testing.T) {
	if !IsValidFile("/data/comics/vol1.cbz", 1024) {
		t.Error("absolute archive paths should be valid stand-alone files")
	}
	if !IsValidFile("/data/photos/a.jpg", 1024) {
		t.Error("absolute image paths should be valid stand-alone files")
	}
	if IsValidFile("/data/notes.txt", 1024) {
		t.Error("unsupported extensions should be rejected")
	}
	if IsValidFile("/data/Thumbs.db", 1024) {
		t.Error("junk files should be rejected")
	}
}

func TestGetFileType(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"a.jpg", FileTypeImage},
		{"a.JPEG", FileTypeImage},
		{"a.webp", FileTypeImage},
		{"comics/vol1.zip", FileTypeArchive},
		{"comics/vol1.cbz", FileTypeArchive},
		{"comics/vol1.rar", FileTypeArchive},
		{"comics/vol1.CBR", FileTypeArchive},
		{"a.txt", FileTypeOther},
		{"a", FileTypeOther},
	}

	for _, tt := range tests {
		if got := GetFileType(tt.path); got != tt.want {
			t.Errorf("GetFileType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.jpg", "jpeg"},
		{"a.jpeg", "jpeg"},
		{"a.tif", "tiff"},
		{"a.PNG", "png"},
		{"a.webp", "webp"},
		{"noext", "unknown"},
	}

	for _, tt := range tests {
		if got := Format(tt.path); got != tt.want {
			t.Errorf("Format(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}
