package pipeline

import "fmt"

// Stage names used in per-URL error reporting.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageFormat     = "format"
)

// StageError records which pipeline stage failed for a URL. Stage errors
// are always non-fatal to the batch; they end up in BatchResult.FailedURLs.
type StageError struct {
	Stage string
	Err   error
}

// Error formats the failure with its stage prefix.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}
