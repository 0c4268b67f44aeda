package archive

import (
	"sort"
	"strings"

	"archive-indexer/internal/filetypes"
)

// ImageEntries returns the container's image entries that pass
// validation, sorted case-insensitively by internal path. The sort is
// the pipeline's deterministic "first image" rule: thumbnail selection
// and entry ordering must be stable across runs.
func ImageEntries(r Reader) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if filetypes.IsValidEntry(e.Path, e.Size) {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Path), strings.ToLower(out[j].Path)
		if li == lj {
			return out[i].Path < out[j].Path
		}
		return li < lj
	})

	return out
}
