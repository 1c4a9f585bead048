package format

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

func sampleTranscript() *types.Transcript {
	return &types.Transcript{
		Text:     "Hello world. This is a test.",
		Language: "en",
		Segments: []types.Segment{
			{Start: 0.0, End: 2.5, Text: " Hello world.", Speaker: "SPEAKER_00"},
			{Start: 3.0, End: 5.8, Text: " This is a test."},
			{Start: 8.0, End: 9.0, Text: ""},
		},
	}
}

// TestWriteTXT verifies the plain text output with a trailing newline.
func TestWriteTXT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := WriteTXT(sampleTranscript(), path); err != nil {
		t.Fatalf("WriteTXT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := string(data); got != "Hello world. This is a test.\n" {
		t.Fatalf("txt content = %q", got)
	}
}

// TestWriteTXTFromSegments checks reconstruction when Text is empty.
func TestWriteTXTFromSegments(t *testing.T) {
	tr := sampleTranscript()
	tr.Text = ""

	path := filepath.Join(t.TempDir(), "out.txt")
	if err := WriteTXT(tr, path); err != nil {
		t.Fatalf("WriteTXT: %v", err)
	}

	data, _ := os.ReadFile(path)
	want := "Hello world.\nThis is a test.\n"
	if string(data) != want {
		t.Fatalf("txt content = %q, want %q", string(data), want)
	}
}

// TestWriteTXTEmpty rejects transcripts with nothing to write.
func TestWriteTXTEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := WriteTXT(&types.Transcript{}, path); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

// TestWriteSRT verifies numbering, timestamps, and speaker prefixes.
func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	if err := WriteSRT(sampleTranscript(), path); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)

	for _, want := range []string{
		"1\n00:00:00,000 --> 00:00:02,500\n(SPEAKER_00) Hello world.",
		"2\n00:00:03,000 --> 00:00:05,800\nThis is a test.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("srt output missing %q in:\n%s", want, content)
		}
	}
	// The empty-text segment must be skipped, not numbered.
	if strings.Contains(content, "\n3\n") {
		t.Errorf("expected 2 cues, got a third in:\n%s", content)
	}
}

// TestWriteSRTNoSegments requires segments for srt output.
func TestWriteSRTNoSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	if err := WriteSRT(&types.Transcript{Text: "plain"}, path); err == nil {
		t.Fatal("expected error without segments")
	}
}

// TestTimestamp covers rounding and hour rollover.
func TestTimestamp(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{2.5, "00:00:02,500"},
		{61.042, "00:01:01,042"},
		{3661.999, "01:01:01,999"},
		{-1, "00:00:00,000"},
	}
	for _, c := range cases {
		if got := Timestamp(c.in); got != c.want {
			t.Errorf("Timestamp(%v) = %s, want %s", c.in, got, c.want)
		}
	}
}

// TestRenderUnknownFormat rejects formats outside txt/srt.
func TestRenderUnknownFormat(t *testing.T) {
	var r Renderer
	err := r.Render(sampleTranscript(), filepath.Join(t.TempDir(), "x.vtt"), "vtt")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
