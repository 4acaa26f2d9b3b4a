package jobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vidgrab/internal/model"
	"vidgrab/internal/runstore"
)

// FileStore writes one JSON document per job under dir and mirrors them in
// memory. The directory is locked for the lifetime of the store.
type FileStore struct {
	dir  string
	lock runstore.DirLock
	mem  *MemoryStore
	mu   sync.Mutex
}

func OpenFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("job data directory is required")
	}
	lock, err := runstore.AcquireDirLock(dir)
	if err != nil {
		return nil, err
	}

	s := &FileStore{dir: dir, lock: lock, mem: NewMemoryStore()}
	if err := s.load(); err != nil {
		_ = lock.Release()
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	paths, err := runstore.ListJSONFiles(s.dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		var rec model.JobRecord
		if err := runstore.ReadJSON(path, &rec); err != nil {
			return err
		}
		if rec.JobID == "" {
			continue
		}
		s.mem.jobs[rec.JobID] = rec
	}
	return nil
}

// Interrupted marks every reloaded job that never reached a terminal state
// as failed. Their downloads died with the previous process.
func (s *FileStore) Interrupted(ctx context.Context, detail string) (int, error) {
	s.mem.mu.RLock()
	ids := make([]string, 0)
	for id, rec := range s.mem.jobs {
		if !model.IsTerminalStatus(rec.Status) {
			ids = append(ids, id)
		}
	}
	s.mem.mu.RUnlock()

	for _, id := range ids {
		_, err := s.Update(ctx, id, func(rec *model.JobRecord) error {
			if err := model.TransitionJobStatus(rec, model.StatusError); err != nil {
				return err
			}
			rec.ErrorDetail = detail
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *FileStore) Create(ctx context.Context, rec model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Create(ctx, rec); err != nil {
		return err
	}
	stored, _ := s.mem.Get(ctx, rec.JobID)
	if err := runstore.WriteJSON(s.path(rec.JobID), stored); err != nil {
		s.mem.mu.Lock()
		delete(s.mem.jobs, rec.JobID)
		s.mem.mu.Unlock()
		return err
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	return s.mem.Get(ctx, jobID)
}

func (s *FileStore) Update(ctx context.Context, jobID string, mutate func(*model.JobRecord) error) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.mem.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rec, err := s.mem.Update(ctx, jobID, mutate)
	if err != nil {
		return nil, err
	}
	if err := runstore.WriteJSON(s.path(jobID), rec); err != nil {
		s.mem.mu.Lock()
		s.mem.jobs[jobID] = *prev
		s.mem.mu.Unlock()
		return nil, err
	}
	return rec, nil
}

// Prune removes terminal jobs last updated before cutoff.
func (s *FileStore) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	removed := 0
	for id, rec := range s.mem.jobs {
		if !model.IsTerminalStatus(rec.Status) || !rec.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove job file %s: %w", id, err)
		}
		delete(s.mem.jobs, id)
		removed++
	}
	return removed, nil
}

func (s *FileStore) Close() error {
	return s.lock.Release()
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, filepath.Base(jobID)+".json")
}
