// Package jobstore persists backend job records.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidgrab/internal/model"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrExists   = errors.New("job already exists")
)

// Store keeps one record per job id. Get returns (nil, nil) for unknown ids;
// Update returns ErrNotFound.
type Store interface {
	Create(ctx context.Context, rec model.JobRecord) error
	Get(ctx context.Context, jobID string) (*model.JobRecord, error)
	Update(ctx context.Context, jobID string, mutate func(*model.JobRecord) error) (*model.JobRecord, error)
	Close() error
}

func validateID(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job id is required")
	}
	return nil
}

func stampNew(rec *model.JobRecord, now time.Time) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}
