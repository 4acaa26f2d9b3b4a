// Package engine runs download jobs for the backend and records their
// lifecycle in a job store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vidgrab/internal/jobstore"
	"vidgrab/internal/model"
	"vidgrab/internal/ytdlp"
)

var (
	ErrJobNotFound  = errors.New("download not found")
	ErrShuttingDown = errors.New("engine is shutting down")
)

var allowedExtensions = map[string]bool{
	"mp4":  true,
	"webm": true,
	"m4a":  true,
	"mp3":  true,
}

// minProgressStep limits store writes while a download streams progress.
const minProgressStep = 0.1

type Engine struct {
	store  jobstore.Store
	runner Runner
	logger *log.Logger
	newID  func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(store jobstore.Store, runner Runner, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:  store,
		runner: runner,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
		ctx:    ctx,
		cancel: cancel,
	}
}

// GetFormats lists the downloadable formats of sourceURL, keeping only
// container types the client can select.
func (e *Engine) GetFormats(ctx context.Context, sourceURL string) ([]model.Format, error) {
	info, err := e.runner.Info(ctx, strings.TrimSpace(sourceURL))
	if err != nil {
		return nil, err
	}

	formats := make([]model.Format, 0, len(info.Formats))
	seen := make(map[string]bool, len(info.Formats))
	for _, f := range info.Formats {
		ext := strings.ToLower(strings.TrimSpace(f.Ext))
		if !allowedExtensions[ext] || f.FormatID == "" || seen[f.FormatID] {
			continue
		}
		seen[f.FormatID] = true
		desc := strings.TrimSpace(f.FormatNote)
		if desc == "" {
			desc = "unknown"
		}
		formats = append(formats, model.Format{
			FormatID:    f.FormatID,
			Description: desc,
			Extension:   ext,
		})
	}
	return formats, nil
}

// StartDownload records a pending job and runs it in the background.
func (e *Engine) StartDownload(ctx context.Context, sourceURL, formatID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrShuttingDown
	}

	rec := model.JobRecord{
		JobID:     e.newID(),
		SourceURL: strings.TrimSpace(sourceURL),
		FormatID:  strings.TrimSpace(formatID),
	}
	if err := model.TransitionJobStatus(&rec, model.StatusPending); err != nil {
		return "", err
	}
	if err := e.store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	e.logger.Printf("job=%s queued url=%s format=%s", rec.JobID, rec.SourceURL, rec.FormatID)

	e.wg.Add(1)
	go e.run(rec)
	return rec.JobID, nil
}

func (e *Engine) Status(ctx context.Context, jobID string) (model.JobRecord, error) {
	rec, err := e.store.Get(ctx, jobID)
	if err != nil {
		return model.JobRecord{}, err
	}
	if rec == nil {
		return model.JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return *rec, nil
}

// Shutdown cancels running downloads and waits for their records to settle.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(rec model.JobRecord) {
	defer e.wg.Done()
	jobID := rec.JobID

	var lineMu sync.Mutex
	last := -1.0
	onLine := func(line string) {
		pct, ok := ParseProgressLine(line)
		if !ok {
			return
		}
		lineMu.Lock()
		defer lineMu.Unlock()
		if last >= 0 && pct-last < minProgressStep {
			return
		}
		last = pct
		if err := e.update(jobID, func(r *model.JobRecord) error {
			if r.Status == model.StatusPending {
				if err := model.TransitionJobStatus(r, model.StatusRunning); err != nil {
					return err
				}
				e.logger.Printf("job=%s running", jobID)
			}
			if pct > r.Progress {
				r.Progress = pct
			}
			return nil
		}); err != nil {
			e.logger.Printf("job=%s progress update failed: %v", jobID, err)
		}
	}

	err := e.runner.Download(e.ctx, rec.SourceURL, rec.FormatID, onLine)
	if err != nil {
		detail := failureDetail(err)
		if uerr := e.update(jobID, func(r *model.JobRecord) error {
			if err := model.TransitionJobStatus(r, model.StatusError); err != nil {
				return err
			}
			r.ErrorDetail = detail
			return nil
		}); uerr != nil {
			e.logger.Printf("job=%s could not record failure: %v", jobID, uerr)
		}
		e.logger.Printf("job=%s error: %v", jobID, err)
		return
	}

	if uerr := e.update(jobID, func(r *model.JobRecord) error {
		if r.Status == model.StatusPending {
			if err := model.TransitionJobStatus(r, model.StatusRunning); err != nil {
				return err
			}
		}
		if err := model.TransitionJobStatus(r, model.StatusFinished); err != nil {
			return err
		}
		r.Progress = 100
		return nil
	}); uerr != nil {
		e.logger.Printf("job=%s could not record completion: %v", jobID, uerr)
		return
	}
	e.logger.Printf("job=%s finished", jobID)
}

// update writes with a context detached from shutdown so the final state
// of a cancelled download is still recorded.
func (e *Engine) update(jobID string, mutate func(*model.JobRecord) error) error {
	_, err := e.store.Update(context.WithoutCancel(e.ctx), jobID, mutate)
	return err
}

func failureDetail(err error) string {
	if errors.Is(err, context.Canceled) {
		return "download cancelled: server shutting down"
	}
	var cmdErr *ytdlp.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Summary()
	}
	return err.Error()
}
