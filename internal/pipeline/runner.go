package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/download"
	"github.com/codebuildervaibhav/transcriptor/internal/storage"
	"github.com/codebuildervaibhav/transcriptor/internal/transcribe"
	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// Downloader fetches audio for one URL into outputDir and returns the path
// of the produced file.
type Downloader interface {
	Download(ctx context.Context, url, outputDir, audioFormat string) (string, error)
}

// Transcriber turns an audio file into a structured transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts transcribe.Options) (*types.Transcript, error)
}

// Formatter renders a transcript to disk in the requested format.
type Formatter interface {
	Render(t *types.Transcript, path, format string) error
}

// Prober resolves a human-readable title for a URL, used to name output
// files. Optional; failures fall back to a URL-derived name.
type Prober interface {
	Probe(ctx context.Context, url string) (string, error)
}

// Request describes one pipeline run for a single job.
type Request struct {
	JobID     string
	URLs      []string
	Config    types.JobConfig
	APIKey    string
	OutputDir string
	AudioDir  string

	// Notify is invoked synchronously before each stage begins.
	Notify func(types.Status)
	// ShouldCancel is checked at stage boundaries; when it reports true the
	// runner stops before the next stage and returns a cancelled result.
	ShouldCancel func() bool
}

// Runner drives the URLs of one job through download, transcription and
// formatting, strictly sequentially, tolerating per-URL failures.
type Runner struct {
	downloader  Downloader
	transcriber Transcriber
	formatter   Formatter
	prober      Prober
	log         *logrus.Logger
}

// NewRunner wires the stage collaborators. prober may be nil.
func NewRunner(d Downloader, t Transcriber, f Formatter, p Prober, log *logrus.Logger) *Runner {
	return &Runner{
		downloader:  d,
		transcriber: t,
		formatter:   f,
		prober:      p,
		log:         log,
	}
}

// Run processes every URL in order. Stage failures are folded into the
// result's FailedURLs map and never abort the batch; only a cancellation
// request stops processing early.
func (r *Runner) Run(ctx context.Context, req Request) types.BatchResult {
	result := types.BatchResult{
		FailedURLs: make(map[string]string),
	}
	log := r.log.WithField("job_id", req.JobID)
	log.Infof("Pipeline started for %d URL(s)", len(req.URLs))

	for i, url := range req.URLs {
		if r.cancelled(ctx, req) {
			log.Infof("Cancellation observed before URL %d/%d, stopping", i+1, len(req.URLs))
			result.Cancelled = true
			break
		}

		log.Infof("Processing URL %d/%d: %s", i+1, len(req.URLs), url)
		files, err := r.processURL(ctx, req, url)
		result.Files = append(result.Files, files...)

		if r.cancelled(ctx, req) && err == nil && len(files) == 0 {
			// Cancelled between stages mid-URL; not a failure of this URL.
			result.Cancelled = true
			break
		}
		if err != nil {
			log.Warnf("URL failed: %s: %v", url, err)
			result.FailedURLs[url] = err.Error()
		}
		if len(files) > 0 {
			result.ProcessedCount++
		}
	}

	// A cancel that lands during the final URL's formatting is still honored
	// so the job never finishes the cancelling state as completed.
	if !result.Cancelled && r.cancelled(ctx, req) {
		result.Cancelled = true
	}

	log.Infof("Pipeline finished. Processed: %d, failed: %d, cancelled: %v",
		result.ProcessedCount, len(result.FailedURLs), result.Cancelled)
	return result
}

// processURL runs the three stages for one URL. A panic anywhere inside is
// contained here and reported as a stage failure so the batch continues.
func (r *Runner) processURL(ctx context.Context, req Request, url string) (files []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("PANIC processing %s: %v\n%s", url, rec, string(debug.Stack()))
			err = &StageError{
				Stage: StageFormat,
				Err:   fmt.Errorf("unexpected error: %v", rec),
			}
		}
	}()

	// Stage 1: download.
	req.Notify(types.StatusDownloading)
	audioPath, err := r.downloader.Download(ctx, url, req.AudioDir, req.Config.AudioFormat)
	if err != nil {
		return nil, &StageError{Stage: StageDownload, Err: err}
	}

	if r.cancelled(ctx, req) {
		return nil, nil
	}

	// Stage 2: transcribe.
	req.Notify(types.StatusTranscribing)
	transcript, err := r.transcriber.Transcribe(ctx, audioPath, transcribe.Options{
		APIKey:        req.APIKey,
		Model:         req.Config.Model,
		Language:      req.Config.Language,
		Prompt:        req.Config.Prompt,
		Temperature:   req.Config.Temperature,
		SpeakerLabels: req.Config.SpeakerLabels,
	})
	if err != nil {
		return nil, &StageError{Stage: StageTranscribe, Err: err}
	}

	if r.cancelled(ctx, req) {
		return nil, nil
	}

	// Stage 3: format, best-effort per requested format.
	req.Notify(types.StatusFormatting)
	base := r.baseFilename(ctx, req.OutputDir, url)

	var failedFormats []string
	for _, f := range req.Config.Formats {
		outPath := filepath.Join(req.OutputDir, base+"."+f)
		if renderErr := r.formatter.Render(transcript, outPath, f); renderErr != nil {
			r.log.Warnf("Failed to render %s for %s: %v", f, url, renderErr)
			failedFormats = append(failedFormats, f)
			continue
		}
		files = append(files, base+"."+f)
	}

	// Delete intermediate audio only when every format rendered and the
	// config does not ask to keep it.
	if len(failedFormats) == 0 && !req.Config.KeepAudio {
		if rmErr := os.Remove(audioPath); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.Warnf("Failed to remove intermediate audio %s: %v", audioPath, rmErr)
		}
	}

	if len(failedFormats) > 0 {
		return files, &StageError{
			Stage: StageFormat,
			Err:   fmt.Errorf("failed to render: %s", strings.Join(failedFormats, ", ")),
		}
	}
	return files, nil
}

// cancelled reports whether the job's cancel flag is set or the context is
// done; checked only at stage boundaries, never during a blocking call.
func (r *Runner) cancelled(ctx context.Context, req Request) bool {
	if req.ShouldCancel != nil && req.ShouldCancel() {
		return true
	}
	return ctx.Err() != nil
}

// baseFilename derives the output base name for a URL, preferring the
// probed page title and guaranteeing uniqueness within the job directory.
func (r *Runner) baseFilename(ctx context.Context, outputDir, url string) string {
	name := ""
	if r.prober != nil {
		if title, err := r.prober.Probe(ctx, url); err == nil {
			name = title
		} else {
			r.log.Debugf("Title probe failed for %s: %v", url, err)
		}
	}
	if name == "" {
		name = download.NameFromURL(url)
	}
	name = storage.SanitizeFilename(name)

	// Suffix on collision so two URLs with the same title keep both outputs.
	candidate := name
	for n := 2; ; n++ {
		matches, _ := filepath.Glob(filepath.Join(outputDir, candidate+".*"))
		if len(matches) == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
}
