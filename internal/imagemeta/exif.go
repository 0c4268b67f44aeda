package imagemeta

import (
	"bytes"
	"time"

	"archive-indexer/internal/logging"

	"github.com/rwcarlsen/goexif/exif"
)

// captureDate tries to read the EXIF original-capture timestamp from a
// buffered image. Most scanned content has no EXIF block at all, so a
// decode error here is the common case, not a problem.
func captureDate(data []byte) (date time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("metadata: exif decoder panic recovered: %v", r)
			date, ok = time.Time{}, false
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}

	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
