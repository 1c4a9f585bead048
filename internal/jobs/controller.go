package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/pipeline"
	"github.com/codebuildervaibhav/transcriptor/internal/storage"
	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// PipelineRunner is the execution engine for one job's batch of URLs.
type PipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) types.BatchResult
}

// SubmitRequest is the submission payload accepted by Submit.
type SubmitRequest struct {
	URLs   []string        `json:"urls" validate:"required,min=1,dive,required"`
	Config types.JobConfig `json:"config" validate:"required"`
}

// StatusView is the polling payload for one job.
type StatusView struct {
	JobID  string       `json:"job_id"`
	Status types.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// ResultView is the full result payload. Before a terminal state only the
// status fields are populated.
type ResultView struct {
	JobID          string            `json:"job_id"`
	Status         types.Status      `json:"status"`
	Error          string            `json:"error,omitempty"`
	ProcessedCount *int              `json:"processed_count,omitempty"`
	Files          []string          `json:"files,omitempty"`
	FailedURLs     map[string]string `json:"failed_urls,omitempty"`
}

// Controller creates jobs, launches them on background goroutines, applies
// runner callbacks to the store, and exposes cancel/retry.
type Controller struct {
	store    *Store
	bus      *EventBus
	runner   PipelineRunner
	dirs     *storage.JobDirs
	db       *storage.MetadataDB
	drive    *storage.DriveClient
	validate *validator.Validate
	log      *logrus.Logger
	apiKey   string
	wg       sync.WaitGroup
}

// ControllerOptions carries the optional collaborators.
type ControllerOptions struct {
	MetadataDB  *storage.MetadataDB
	DriveClient *storage.DriveClient
}

// NewController wires the controller. db and drive in opts may be nil.
func NewController(store *Store, bus *EventBus, runner PipelineRunner, dirs *storage.JobDirs, apiKey string, log *logrus.Logger, opts ControllerOptions) *Controller {
	return &Controller{
		store:    store,
		bus:      bus,
		runner:   runner,
		dirs:     dirs,
		db:       opts.MetadataDB,
		drive:    opts.DriveClient,
		validate: validator.New(),
		log:      log,
		apiKey:   apiKey,
	}
}

// Submit validates the request, creates a pending job, launches it on a
// background goroutine, and returns the job ID without waiting.
func (c *Controller) Submit(req SubmitRequest) (string, error) {
	if err := c.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, u := range req.URLs {
		if strings.TrimSpace(u) == "" {
			return "", fmt.Errorf("%w: empty url in submission", ErrValidation)
		}
	}

	return c.launch(req.URLs, req.Config.Clone())
}

// launch creates the record and starts pipeline execution; shared between
// Submit and Retry.
func (c *Controller) launch(urls []string, config types.JobConfig) (string, error) {
	id := uuid.New().String()

	// Directories first: once a record exists a poller can see it, and a
	// record with no goroutine attached would stay pending forever.
	if err := c.dirs.Ensure(id); err != nil {
		return "", err
	}
	rec := Record{
		ID:        id,
		URLs:      urls,
		Config:    config,
		OutputDir: c.dirs.JobDir(id),
	}
	if err := c.store.Create(rec); err != nil {
		return "", err
	}

	c.log.Infof("Job %s submitted (%d URLs)", id, len(urls))
	c.wg.Add(1)
	go c.runJob(id, urls, config)
	return id, nil
}

// runJob executes the pipeline for one job and resolves its terminal
// state. It is the only goroutine that mutates this job's status.
func (c *Controller) runJob(id string, urls []string, config types.JobConfig) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Job %s: PANIC in job runner: %v\n%s", id, r, string(debug.Stack()))
			c.finish(id, types.StatusFailed, nil, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	result := c.runner.Run(context.Background(), pipeline.Request{
		JobID:     id,
		URLs:      urls,
		Config:    config,
		APIKey:    c.apiKey,
		OutputDir: c.dirs.JobDir(id),
		AudioDir:  c.dirs.AudioDir(id),
		Notify: func(stage types.Status) {
			if c.store.SetStage(id, stage) {
				c.bus.Publish(Event{JobID: id, Status: stage})
			}
		},
		ShouldCancel: func() bool {
			return c.store.CancelRequested(id)
		},
	})

	status, errMsg := resolveTerminal(result)
	c.uploadToDrive(id, result.Files)
	c.finish(id, status, &result, errMsg)
}

// resolveTerminal maps a batch result onto the job's terminal state.
// Nothing processed and at least one failure resolves to failed; partial
// failure still completes, carrying the failure summary in the error field.
// FailedURLs is keyed by URL, so its size is not compared against the
// submission: duplicate URLs collapse to one entry.
func resolveTerminal(result types.BatchResult) (types.Status, string) {
	switch {
	case result.Cancelled:
		return types.StatusCancelled, ""
	case len(result.FailedURLs) == 0:
		return types.StatusCompleted, ""
	case result.ProcessedCount == 0:
		return types.StatusFailed, failureSummary(result.FailedURLs)
	default:
		return types.StatusCompleted, failureSummary(result.FailedURLs)
	}
}

// failureSummary renders the failed-URL map deterministically.
func failureSummary(failed map[string]string) string {
	urls := make([]string, 0, len(failed))
	for u := range failed {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	parts := make([]string, len(urls))
	for i, u := range urls {
		parts[i] = fmt.Sprintf("%s (%s)", u, failed[u])
	}
	return "processing failed for: " + strings.Join(parts, "; ")
}

// finish applies the terminal state, records metadata, and publishes the
// terminal event.
func (c *Controller) finish(id string, status types.Status, result *types.BatchResult, errMsg string) {
	if err := c.store.Finish(id, status, result, errMsg); err != nil {
		c.log.Errorf("Job %s: failed to finalize: %v", id, err)
		return
	}

	// Finish may have coerced the status; read back the stored truth.
	rec, _ := c.store.Get(id)
	c.log.Infof("Job %s finished: %s", id, rec.Status)

	if c.db != nil {
		meta := storage.JobMetadata{
			JobID:    id,
			Status:   string(rec.Status),
			URLCount: len(rec.URLs),
			Error:    rec.Error,
		}
		if rec.Result != nil {
			meta.ProcessedCount = rec.Result.ProcessedCount
			meta.Files = rec.Result.Files
		}
		if err := c.db.SaveJob(meta); err != nil {
			c.log.Warnf("Job %s: metadata save failed: %v", id, err)
		}
	}

	c.bus.Publish(Event{
		JobID:    id,
		Status:   rec.Status,
		Error:    rec.Error,
		Terminal: true,
	})
}

// uploadToDrive mirrors rendered files to Google Drive when configured.
// Upload failures are logged, never escalated.
func (c *Controller) uploadToDrive(id string, files []string) {
	if c.drive == nil || len(files) == 0 {
		return
	}

	paths := make(map[string]string, len(files))
	for _, name := range files {
		path, err := c.dirs.Resolve(id, name)
		if err != nil {
			continue
		}
		paths[name] = path
	}

	links, err := c.drive.UploadJobFiles(id, paths)
	if err != nil {
		c.log.Warnf("Job %s: Google Drive upload incomplete, continuing with local files: %v", id, err)
	}
	if len(links) > 0 {
		c.log.Infof("Job %s: %d file(s) mirrored to Google Drive", id, len(links))
	}
}

// Cancel requests cooperative cancellation of a running job.
func (c *Controller) Cancel(id string) error {
	if err := c.store.RequestCancel(id); err != nil {
		return err
	}
	c.log.Infof("Job %s: cancellation requested", id)
	c.bus.Publish(Event{JobID: id, Status: types.StatusCancelling})
	return nil
}

// Retry creates and launches a new job with the failed job's URLs and
// config. The original record is left untouched.
func (c *Controller) Retry(id string) (string, error) {
	rec, ok := c.store.Get(id)
	if !ok {
		return "", ErrNotFound
	}
	if rec.Status != types.StatusFailed {
		return "", fmt.Errorf("%w: only failed jobs can be retried, job is %s", ErrInvalidState, rec.Status)
	}

	newID, err := c.launch(rec.URLs, rec.Config)
	if err != nil {
		return "", err
	}
	c.log.Infof("Job %s retried as %s", id, newID)
	return newID, nil
}

// Status returns the polling view for one job.
func (c *Controller) Status(id string) (StatusView, error) {
	rec, ok := c.store.Get(id)
	if !ok {
		return StatusView{}, ErrNotFound
	}
	return StatusView{JobID: rec.ID, Status: rec.Status, Error: rec.Error}, nil
}

// Result returns the full result payload. Calling before completion is
// defined behavior: the current partial status is returned without result
// fields.
func (c *Controller) Result(id string) (ResultView, error) {
	rec, ok := c.store.Get(id)
	if !ok {
		return ResultView{}, ErrNotFound
	}

	view := ResultView{JobID: rec.ID, Status: rec.Status, Error: rec.Error}
	if rec.Result != nil {
		processed := rec.Result.ProcessedCount
		view.ProcessedCount = &processed
		view.Files = rec.Result.Files
		view.FailedURLs = rec.Result.FailedURLs
	}
	return view, nil
}

// Wait blocks until all launched jobs have finished; used on shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}
