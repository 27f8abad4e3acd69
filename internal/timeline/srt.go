package timeline

import (
	"fmt"
	"io"
	"strings"
)

// FormatTimestamp renders a millisecond offset as an SRT timestamp
// (HH:MM:SS,mmm).
func FormatTimestamp(ms int64) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// WriteSRT renders the list as a SubRip subtitle stream. When translated is
// true the target-language text is used; otherwise the source transcript.
// Segments with empty text are skipped without consuming a sequence number.
func WriteSRT(w io.Writer, list List, translated bool) error {
	seq := 1
	for _, seg := range list {
		text := seg.Text
		if translated {
			text = seg.TranslatedText
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			seq, FormatTimestamp(seg.Start), FormatTimestamp(seg.End), text)
		if err != nil {
			return fmt.Errorf("failed to write subtitle entry %d: %w", seq, err)
		}
		seq++
	}
	return nil
}
