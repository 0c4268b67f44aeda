package archive

import (
	"path/filepath"
	"testing"
)

func TestImageEntriesSortAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeZip(t, path, map[string]string{
		"b.jpg":     "bbbb",
		"a.png":     "aaaa",
		"c.jpg":     "cccc",
		"notes.txt": "text",
		"Thumbs.db": "junk",
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	entries := ImageEntries(r)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 image entries, got %d", len(entries))
	}

	want := []string{"a.png", "b.jpg", "c.jpg"}
	for i, w := range want {
		if entries[i].Path != w {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Path, w)
		}
	}
}

func TestImageEntriesCaseInsensitiveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.zip")
	writeZip(t, path, map[string]string{
		"B.jpg": "b",
		"a.jpg": "a",
		"C.jpg": "c",
	})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	entries := ImageEntries(r)
	want := []string{"a.jpg", "B.jpg", "C.jpg"}
	for i, w := range want {
		if entries[i].Path != w {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Path, w)
		}
	}
}
