package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// TestTranscribe verifies the request shape and response decoding.
func TestTranscribe(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{
			"text": "hello there",
			"language": "en",
			"duration": 4.2,
			"segments": [
				{"start": 0, "end": 2.1, "text": " hello", "speaker": "SPEAKER_00"},
				{"start": 2.1, "end": 4.2, "text": " there"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, logrus.New())
	tr, err := c.Transcribe(context.Background(), writeAudioFixture(t), Options{
		APIKey:        "key-123",
		Model:         "whisper-1",
		Language:      "en",
		SpeakerLabels: true,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotAuth != "Bearer key-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	for _, field := range []string{"whisper-1", "verbose_json", "speaker_labels", "audio.mp3"} {
		if !strings.Contains(gotBody, field) {
			t.Errorf("request body missing %q", field)
		}
	}

	if tr.Text != "hello there" || len(tr.Segments) != 2 {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
	if tr.Segments[0].Speaker != "SPEAKER_00" {
		t.Errorf("speaker = %q", tr.Segments[0].Speaker)
	}
}

// TestTranscribeAPIError surfaces non-200 responses as errors.
func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, logrus.New())
	_, err := c.Transcribe(context.Background(), writeAudioFixture(t), Options{
		APIKey: "bad", Model: "whisper-1",
	})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

// TestTranscribeMissingKey fails fast before any network call.
func TestTranscribeMissingKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", 0, logrus.New())
	if _, err := c.Transcribe(context.Background(), "nope.mp3", Options{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
