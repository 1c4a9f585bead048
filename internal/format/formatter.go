package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// Renderer writes a transcript to disk in one of the supported formats.
// The zero value is ready to use.
type Renderer struct{}

// Render dispatches on the requested format and writes output to path.
func (Renderer) Render(t *types.Transcript, path, format string) error {
	switch format {
	case types.FormatTXT:
		return WriteTXT(t, path)
	case types.FormatSRT:
		return WriteSRT(t, path)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteTXT writes the plain-text transcript. When the top-level text is
// empty the text is reconstructed by joining segment texts.
func WriteTXT(t *types.Transcript, path string) error {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		var parts []string
		for _, seg := range t.Segments {
			if s := strings.TrimSpace(seg.Text); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, "\n")
	}
	if text == "" {
		return fmt.Errorf("transcript has no text or segments")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(text+"\n"), 0644)
}

// WriteSRT writes a SubRip subtitle file from the transcript segments.
// Segments missing a start or end time, or with empty text, are skipped.
// Speaker labels, when present, are prefixed as "(SPEAKER) text".
func WriteSRT(t *types.Transcript, path string) error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("srt output requires transcript segments")
	}

	var b strings.Builder
	count := 0
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End <= 0 && seg.Start <= 0 {
			continue
		}
		if seg.End < seg.Start {
			continue
		}

		count++
		fmt.Fprintf(&b, "%d\n", count)
		fmt.Fprintf(&b, "%s --> %s\n", Timestamp(seg.Start), Timestamp(seg.End))
		if seg.Speaker != "" {
			fmt.Fprintf(&b, "(%s) %s\n", seg.Speaker, text)
		} else {
			b.WriteString(text + "\n")
		}
		b.WriteString("\n")
	}

	if count == 0 {
		return fmt.Errorf("no usable segments for srt output")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// Timestamp formats seconds as an SRT timestamp, HH:MM:SS,mmm.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
