package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidgrab/internal/model"
	"vidgrab/internal/remote"
)

type JobBackend interface {
	SubmitJob(ctx context.Context, sourceURL, formatID string) (string, error)
	JobStatus(ctx context.Context, jobID string) (model.JobState, error)
}

type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeRetry
	OutcomeFinished
	OutcomeFailed
	OutcomeLost
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeRetry:
		return "retry"
	case OutcomeFinished:
		return "finished"
	case OutcomeFailed:
		return "failed"
	case OutcomeLost:
		return "lost"
	case OutcomeStale:
		return "stale"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Step is the result of applying one status observation.
type Step struct {
	JobID   string
	Outcome Outcome
	State   model.JobState
	Percent int
	// Delay is how long to wait before the next poll when polling continues.
	Delay time.Duration
	Err   error
}

// Done reports whether tracking of the job has ended.
func (s Step) Done() bool {
	switch s.Outcome {
	case OutcomeFinished, OutcomeFailed, OutcomeLost:
		return true
	default:
		return false
	}
}

type SubmitRequest struct {
	URL         string
	FormatID    string
	FormatLabel string
}

// Orchestrator submits jobs and drives the polling state machine. Its
// Begin*/Complete*/Apply* methods mutate State and must run on one
// goroutine; the Fetch* methods only do I/O and may run anywhere.
type Orchestrator struct {
	backend JobBackend
	state   *State
	ledger  *Ledger
	notify  Notifier
	policy  PollPolicy
}

func (o *Orchestrator) Policy() PollPolicy { return o.policy }

func (o *Orchestrator) BeginSubmit(url, formatID string) (SubmitRequest, error) {
	url = strings.TrimSpace(url)
	formatID = strings.TrimSpace(formatID)
	if url == "" || formatID == "" {
		o.notify.Notify("Please fill in all fields")
		field := "url"
		if url != "" {
			field = "format"
		}
		return SubmitRequest{}, &ValidationError{Field: field, Message: "both a source URL and a format are required"}
	}
	if o.state.JobInFlight() {
		return SubmitRequest{}, ErrJobActive
	}

	label := formatID
	for _, f := range o.state.Formats {
		if f.FormatID == formatID {
			label = f.Label()
			break
		}
	}

	o.state.submitting = true
	o.state.SubmitEnabled = false
	o.state.ProgressVisible = true
	o.state.Percent = 0
	o.state.StatusText = DefaultStatusText
	return SubmitRequest{URL: url, FormatID: formatID, FormatLabel: label}, nil
}

func (o *Orchestrator) FetchSubmit(ctx context.Context, req SubmitRequest) (string, error) {
	return o.backend.SubmitJob(ctx, req.URL, req.FormatID)
}

// CompleteSubmit records the new job in the ledger and makes it the tracked
// job. On failure the progress surface is torn down and nothing is recorded.
func (o *Orchestrator) CompleteSubmit(req SubmitRequest, jobID string, err error) error {
	o.state.submitting = false
	if err != nil {
		o.notify.Notify("Error: " + message(err))
		o.state.Reset()
		return &SubmissionError{URL: req.URL, FormatID: req.FormatID, Err: err}
	}

	o.ledger.Prepend(model.HistoryEntry{
		JobID:             jobID,
		SourceURL:         req.URL,
		FormatLabel:       req.FormatLabel,
		LastKnownProgress: 0,
	})
	o.state.activeJobID = jobID
	o.state.failures = 0
	o.state.SubmitEnabled = false
	o.state.ProgressVisible = true
	o.state.Percent = 0
	return nil
}

func (o *Orchestrator) Submit(ctx context.Context, url, formatID string) (string, error) {
	req, err := o.BeginSubmit(url, formatID)
	if err != nil {
		return "", err
	}
	jobID, err := o.FetchSubmit(ctx, req)
	if err := o.CompleteSubmit(req, jobID, err); err != nil {
		return "", err
	}
	return jobID, nil
}

// FetchStatus performs one bounded status request.
func (o *Orchestrator) FetchStatus(ctx context.Context, jobID string) (model.JobState, error) {
	ctx, cancel := context.WithTimeout(ctx, o.policy.Timeout)
	defer cancel()
	st, err := o.backend.JobStatus(ctx, jobID)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return model.JobState{}, &remote.TransportError{Op: "get progress", Err: fmt.Errorf("no response within %s: %w", o.policy.Timeout, err)}
	}
	return st, err
}

// ApplyStatus advances the state machine with one observation for jobID.
// Observations for a job that is no longer tracked are ignored.
func (o *Orchestrator) ApplyStatus(jobID string, st model.JobState, err error) Step {
	if jobID == "" || jobID != o.state.activeJobID {
		return Step{JobID: jobID, Outcome: OutcomeStale}
	}

	if err != nil {
		var te *remote.TransportError
		if errors.As(err, &te) && o.state.failures < o.policy.MaxRetries {
			o.state.failures++
			return Step{JobID: jobID, Outcome: OutcomeRetry, Delay: o.policy.Backoff, Err: err, Percent: o.state.Percent}
		}
		o.notify.Notify("Error monitoring progress: " + message(err))
		o.state.Reset()
		return Step{JobID: jobID, Outcome: OutcomeLost, Err: &TrackingError{JobID: jobID, Err: err}}
	}

	o.state.failures = 0
	pct := model.RoundPercent(st.Progress)
	o.state.Percent = pct
	o.ledger.UpdateProgress(jobID, pct)
	o.state.StatusText = st.Status

	step := Step{JobID: jobID, State: st, Percent: pct}
	switch st.Status {
	case model.StatusFinished:
		step.Outcome = OutcomeFinished
		o.state.Reset()
	case model.StatusError:
		step.Outcome = OutcomeFailed
		step.Err = &JobFailedError{JobID: jobID, Detail: st.ErrorDetail}
		detail := st.ErrorDetail
		if detail == "" {
			detail = "unknown error"
		}
		o.notify.Notify("Download error: " + detail)
		o.state.Reset()
	default:
		step.Outcome = OutcomeContinue
		step.Delay = o.policy.Interval
	}
	return step
}

// Abandon stops tracking without contacting the backend.
func (o *Orchestrator) Abandon() {
	if o.state.JobInFlight() {
		o.state.Reset()
	}
}

// Track polls the active job until it ends. The next request is only issued
// once the previous one has settled and the step's delay has elapsed. onStep
// may be nil.
func (o *Orchestrator) Track(ctx context.Context, onStep func(Step)) (Step, error) {
	jobID := o.state.activeJobID
	if jobID == "" {
		return Step{}, fmt.Errorf("no job is being tracked")
	}

	delay := o.policy.Interval
	for {
		if err := sleep(ctx, delay); err != nil {
			o.Abandon()
			return Step{JobID: jobID}, err
		}
		st, err := o.FetchStatus(ctx, jobID)
		if ctx.Err() != nil {
			o.Abandon()
			return Step{JobID: jobID}, ctx.Err()
		}
		step := o.ApplyStatus(jobID, st, err)
		if onStep != nil {
			onStep(step)
		}
		if step.Done() {
			return step, step.Err
		}
		if step.Outcome == OutcomeStale {
			return step, fmt.Errorf("job %s is no longer tracked", jobID)
		}
		delay = step.Delay
	}
}

// TrackStream applies pushed status documents instead of polling. If the
// stream breaks and the retry policy allows it, tracking continues with
// Track.
func (o *Orchestrator) TrackStream(ctx context.Context, updates <-chan remote.StatusUpdate, onStep func(Step)) (Step, error) {
	jobID := o.state.activeJobID
	if jobID == "" {
		return Step{}, fmt.Errorf("no job is being tracked")
	}

	for {
		var u remote.StatusUpdate
		var ok bool
		select {
		case <-ctx.Done():
			o.Abandon()
			return Step{JobID: jobID}, ctx.Err()
		case u, ok = <-updates:
		}
		if !ok {
			u = remote.StatusUpdate{Err: &remote.TransportError{Op: "watch progress", Err: errors.New("stream ended before a terminal status")}}
		}

		step := o.ApplyStatus(jobID, u.State, u.Err)
		if onStep != nil {
			onStep(step)
		}
		if step.Done() {
			return step, step.Err
		}
		if step.Outcome == OutcomeRetry {
			if err := sleep(ctx, step.Delay); err != nil {
				o.Abandon()
				return Step{JobID: jobID}, err
			}
			return o.Track(ctx, onStep)
		}
		if step.Outcome == OutcomeStale {
			return step, fmt.Errorf("job %s is no longer tracked", jobID)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
