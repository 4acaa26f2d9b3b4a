package tracker

import (
	"errors"
	"fmt"

	"vidgrab/internal/remote"
)

var (
	ErrBusy      = errors.New("format resolution already in progress")
	ErrJobActive = errors.New("a job is already being tracked")
)

// ValidationError is raised before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve formats for %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type SubmissionError struct {
	URL      string
	FormatID string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s (format %s): %v", e.URL, e.FormatID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TrackingError means polling itself failed and the job was abandoned.
type TrackingError struct {
	JobID string
	Err   error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("track job %s: %v", e.JobID, e.Err)
}

func (e *TrackingError) Unwrap() error { return e.Err }

// JobFailedError means the backend reported the job as failed.
type JobFailedError struct {
	JobID  string
	Detail string
}

func (e *JobFailedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Detail)
}

// message is the text shown to the user for err: the backend's own message
// when there is one.
func message(err error) string {
	var be *remote.BackendError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
