package jobs

import "errors"

// ErrNotFound is returned when no job exists for the given ID.
var ErrNotFound = errors.New("job not found")

// ErrInvalidState is returned when an operation is not valid for the job's
// current status, such as cancelling a terminal job or retrying a job that
// did not fail.
var ErrInvalidState = errors.New("operation not valid for job state")

// ErrValidation is returned for bad submissions, before any job is created.
var ErrValidation = errors.New("invalid job submission")
