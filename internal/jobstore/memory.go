package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vidgrab/internal/model"
)

type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]model.JobRecord
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]model.JobRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, rec model.JobRecord) error {
	if err := validateID(rec.JobID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[rec.JobID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, rec.JobID)
	}
	stampNew(&rec, s.now())
	s.jobs[rec.JobID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*model.JobRecord, error) {
	if err := validateID(jobID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Update(_ context.Context, jobID string, mutate func(*model.JobRecord) error) (*model.JobRecord, error) {
	if err := validateID(jobID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err := mutate(&rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = s.now()
	s.jobs[jobID] = rec
	return &rec, nil
}

func (s *MemoryStore) Close() error { return nil }
