package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/transcribe"
	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

type fakeDownloader struct {
	failFor map[string]bool
	calls   int32
}

func (d *fakeDownloader) Download(_ context.Context, url, outputDir, audioFormat string) (string, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.failFor[url] {
		return "", fmt.Errorf("no such video")
	}
	path := filepath.Join(outputDir, fmt.Sprintf("audio_%d.%s", atomic.LoadInt32(&d.calls), audioFormat))
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeTranscriber struct {
	failFor map[string]bool // keyed by audio file base name
	calls   int32
}

func (t *fakeTranscriber) Transcribe(_ context.Context, audioPath string, _ transcribe.Options) (*types.Transcript, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.failFor[filepath.Base(audioPath)] {
		return nil, fmt.Errorf("api rejected audio")
	}
	return &types.Transcript{
		Text:     "hello",
		Segments: []types.Segment{{Start: 0, End: 1, Text: "hello"}},
	}, nil
}

type fakeFormatter struct {
	failFormats map[string]bool
}

func (f *fakeFormatter) Render(t *types.Transcript, path, format string) error {
	if f.failFormats[format] {
		return fmt.Errorf("render %s failed", format)
	}
	return os.WriteFile(path, []byte(t.Text), 0644)
}

type testEnv struct {
	runner      *Runner
	downloader  *fakeDownloader
	transcriber *fakeTranscriber
	formatter   *fakeFormatter
	outputDir   string
	audioDir    string
	stages      []types.Status
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	out := t.TempDir()
	audio := filepath.Join(out, "_audio_files")
	if err := os.MkdirAll(audio, 0755); err != nil {
		t.Fatal(err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)

	env := &testEnv{
		downloader:  &fakeDownloader{failFor: map[string]bool{}},
		transcriber: &fakeTranscriber{failFor: map[string]bool{}},
		formatter:   &fakeFormatter{failFormats: map[string]bool{}},
		outputDir:   out,
		audioDir:    audio,
	}
	env.runner = NewRunner(env.downloader, env.transcriber, env.formatter, nil, log)
	return env
}

func (e *testEnv) request(urls []string, cfg types.JobConfig, shouldCancel func() bool) Request {
	if shouldCancel == nil {
		shouldCancel = func() bool { return false }
	}
	return Request{
		JobID:        "job-test",
		URLs:         urls,
		Config:       cfg,
		APIKey:       "k",
		OutputDir:    e.outputDir,
		AudioDir:     e.audioDir,
		Notify:       func(s types.Status) { e.stages = append(e.stages, s) },
		ShouldCancel: shouldCancel,
	}
}

func baseConfig() types.JobConfig {
	return types.JobConfig{
		Model:       "base",
		Formats:     []string{"txt"},
		AudioFormat: "mp3",
	}
}

// TestRunSuccess covers the single-URL happy path: one txt output, stage
// notifications in order, intermediate audio removed.
func TestRunSuccess(t *testing.T) {
	env := newTestEnv(t)
	res := env.runner.Run(context.Background(), env.request([]string{"https://x/1"}, baseConfig(), nil))

	if res.ProcessedCount != 1 || len(res.FailedURLs) != 0 || res.Cancelled {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Files) != 1 || filepath.Ext(res.Files[0]) != ".txt" {
		t.Fatalf("files = %v", res.Files)
	}

	want := []types.Status{types.StatusDownloading, types.StatusTranscribing, types.StatusFormatting}
	if len(env.stages) != len(want) {
		t.Fatalf("stages = %v", env.stages)
	}
	for i := range want {
		if env.stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", env.stages, want)
		}
	}

	audio, _ := os.ReadDir(env.audioDir)
	if len(audio) != 0 {
		t.Fatalf("intermediate audio not cleaned up: %v", audio)
	}
}

// TestRunKeepAudio leaves the intermediate audio file in place.
func TestRunKeepAudio(t *testing.T) {
	env := newTestEnv(t)
	cfg := baseConfig()
	cfg.KeepAudio = true

	res := env.runner.Run(context.Background(), env.request([]string{"https://x/1"}, cfg, nil))
	if res.ProcessedCount != 1 {
		t.Fatalf("result = %+v", res)
	}

	audio, _ := os.ReadDir(env.audioDir)
	if len(audio) != 1 {
		t.Fatalf("expected audio kept, dir = %v", audio)
	}
}

// TestRunPartialFailure: URL 2 fails at the transcriber, the other two
// complete, and the batch carries both outcomes.
func TestRunPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	// Second download call produces audio_2.mp3.
	env.transcriber.failFor["audio_2.mp3"] = true

	urls := []string{"https://x/1", "https://x/2", "https://x/3"}
	res := env.runner.Run(context.Background(), env.request(urls, baseConfig(), nil))

	if res.ProcessedCount != 2 {
		t.Fatalf("processed = %d, want 2", res.ProcessedCount)
	}
	if len(res.FailedURLs) != 1 || res.FailedURLs["https://x/2"] == "" {
		t.Fatalf("failed_urls = %v", res.FailedURLs)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %v", res.Files)
	}
}

// TestRunDownloadFailureContinues: a download failure skips to the next URL.
func TestRunDownloadFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.failFor["https://x/1"] = true

	res := env.runner.Run(context.Background(),
		env.request([]string{"https://x/1", "https://x/2"}, baseConfig(), nil))

	if res.ProcessedCount != 1 || len(res.FailedURLs) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if atomic.LoadInt32(&env.transcriber.calls) != 1 {
		t.Fatalf("transcriber calls = %d, want 1", env.transcriber.calls)
	}
}

// TestRunFormatBestEffort: one failing format still lets the other render,
// and the URL is recorded as both processed and failed.
func TestRunFormatBestEffort(t *testing.T) {
	env := newTestEnv(t)
	env.formatter.failFormats["srt"] = true
	cfg := baseConfig()
	cfg.Formats = []string{"txt", "srt"}

	res := env.runner.Run(context.Background(), env.request([]string{"https://x/1"}, cfg, nil))

	if res.ProcessedCount != 1 {
		t.Fatalf("processed = %d", res.ProcessedCount)
	}
	if len(res.Files) != 1 {
		t.Fatalf("files = %v", res.Files)
	}
	if _, ok := res.FailedURLs["https://x/1"]; !ok {
		t.Fatalf("format failure not recorded: %v", res.FailedURLs)
	}

	// Audio must be kept when not every format rendered.
	audio, _ := os.ReadDir(env.audioDir)
	if len(audio) != 1 {
		t.Fatalf("audio dir = %v", audio)
	}
}

// TestRunCancelBetweenURLs stops before the second URL without marking it
// failed.
func TestRunCancelBetweenURLs(t *testing.T) {
	env := newTestEnv(t)
	var processed int32
	cancel := func() bool { return atomic.LoadInt32(&processed) > 0 }

	orig := env.formatter
	env.runner = NewRunner(env.downloader, env.transcriber, renderFunc(func(tr *types.Transcript, path, format string) error {
		defer atomic.AddInt32(&processed, 1)
		return orig.Render(tr, path, format)
	}), nil, logrus.New())

	res := env.runner.Run(context.Background(),
		env.request([]string{"https://x/1", "https://x/2"}, baseConfig(), cancel))

	if !res.Cancelled {
		t.Fatal("expected cancelled result")
	}
	if res.ProcessedCount != 1 || len(res.FailedURLs) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

type renderFunc func(t *types.Transcript, path, format string) error

func (f renderFunc) Render(t *types.Transcript, path, format string) error {
	return f(t, path, format)
}

// TestRunCancelAfterDownload: cancel observed at the download/transcribe
// boundary produces no transcript files for the in-flight URL.
func TestRunCancelAfterDownload(t *testing.T) {
	env := newTestEnv(t)
	var downloaded int32
	cancel := func() bool { return atomic.LoadInt32(&downloaded) > 0 }

	env.runner = NewRunner(downloadFunc(func(ctx context.Context, url, dir, af string) (string, error) {
		defer atomic.AddInt32(&downloaded, 1)
		return env.downloader.Download(ctx, url, dir, af)
	}), env.transcriber, env.formatter, nil, logrus.New())

	res := env.runner.Run(context.Background(),
		env.request([]string{"https://x/1"}, baseConfig(), cancel))

	if !res.Cancelled || res.ProcessedCount != 0 || len(res.Files) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if atomic.LoadInt32(&env.transcriber.calls) != 0 {
		t.Fatal("transcriber must not run after cancellation")
	}
}

type downloadFunc func(ctx context.Context, url, outputDir, audioFormat string) (string, error)

func (f downloadFunc) Download(ctx context.Context, url, outputDir, audioFormat string) (string, error) {
	return f(ctx, url, outputDir, audioFormat)
}

// TestRunPanicContained: a collaborator panic is recorded as that URL's
// failure and the batch keeps going.
func TestRunPanicContained(t *testing.T) {
	env := newTestEnv(t)
	first := true
	env.runner = NewRunner(downloadFunc(func(ctx context.Context, url, dir, af string) (string, error) {
		if first {
			first = false
			panic("boom")
		}
		return env.downloader.Download(ctx, url, dir, af)
	}), env.transcriber, env.formatter, nil, logrus.New())

	res := env.runner.Run(context.Background(),
		env.request([]string{"https://x/1", "https://x/2"}, baseConfig(), nil))

	if res.ProcessedCount != 1 {
		t.Fatalf("processed = %d", res.ProcessedCount)
	}
	if msg := res.FailedURLs["https://x/1"]; msg == "" {
		t.Fatalf("panic not recorded: %v", res.FailedURLs)
	}
}

// TestRunAllFailed leaves an empty file list and every URL in FailedURLs.
func TestRunAllFailed(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.failFor["https://x/1"] = true
	env.downloader.failFor["https://x/2"] = true

	res := env.runner.Run(context.Background(),
		env.request([]string{"https://x/1", "https://x/2"}, baseConfig(), nil))

	if res.ProcessedCount != 0 || len(res.FailedURLs) != 2 || len(res.Files) != 0 {
		t.Fatalf("result = %+v", res)
	}
}
