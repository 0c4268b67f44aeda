package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// writeZip creates a zip file containing the given name->content pairs.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
}

func TestOpenZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeZip(t, path, map[string]string{
		"b.jpg":       "bbbb",
		"a.png":       "aaaa",
		"sub/c.jpg":   "cccc",
		"notes.txt":   "text",
		"folder/":     "",
		"Thumbs.db":   "junk",
		"sub/.hidden": "x",
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	entries := r.Entries()
	// The directory entry must not be listed; everything else is.
	for _, e := range entries {
		if e.Path == "folder/" {
			t.Errorf("directory entry should be skipped")
		}
	}
	if len(entries) != 6 {
		t.Errorf("Expected 6 file entries, got %d", len(entries))
	}

	rc, err := r.OpenEntry("a.png")
	if err != nil {
		t.Fatalf("OpenEntry failed: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "aaaa" {
		t.Errorf("Expected entry content aaaa, got %q", data)
	}
}

func TestOpenEntryMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeZip(t, path, map[string]string{"a.jpg": "a"})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if _, err := r.OpenEntry("missing.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open("file.7z"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.zip")); err == nil {
		t.Error("Expected error opening missing file")
	}
}

func TestOpenCbzExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comic.cbz")
	writeZip(t, path, map[string]string{"p1.jpg": "x"})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("cbz should open with the zip decoder: %v", err)
	}
	r.Close()
}
