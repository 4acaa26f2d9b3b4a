package jobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidgrab/internal/model"
	"vidgrab/internal/runstore"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record for unknown id, got %#v %v", missing, err)
	}

	rec := model.JobRecord{
		JobID:     "job-a",
		SourceURL: "https://example.com/v",
		FormatID:  "18",
		Status:    model.StatusPending,
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, rec); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate create, got %v", err)
	}

	got, err := s.Get(ctx, "job-a")
	if err != nil || got == nil {
		t.Fatalf("get: %#v %v", got, err)
	}
	if got.CreatedAt.IsZero() || got.Status != model.StatusPending {
		t.Fatalf("unexpected stored record: %#v", got)
	}

	updated, err := s.Update(ctx, "job-a", func(r *model.JobRecord) error {
		if err := model.TransitionJobStatus(r, model.StatusRunning); err != nil {
			return err
		}
		r.Progress = 35.2
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusRunning || updated.Progress != 35.2 {
		t.Fatalf("unexpected updated record: %#v", updated)
	}

	boom := errors.New("boom")
	if _, err := s.Update(ctx, "job-a", func(r *model.JobRecord) error {
		r.Progress = 99
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	got, _ = s.Get(ctx, "job-a")
	if got.Progress != 35.2 {
		t.Fatalf("failed mutation leaked: %#v", got)
	}

	if _, err := s.Update(ctx, "nope", func(*model.JobRecord) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, s)

	var onDisk model.JobRecord
	if err := runstore.ReadJSON(filepath.Join(dir, "job-a.json"), &onDisk); err != nil {
		t.Fatalf("read job file: %v", err)
	}
	if onDisk.Progress != 35.2 {
		t.Fatalf("unexpected on-disk record: %#v", onDisk)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFileStoreLockBlocksSecondOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := OpenFileStore(dir); err == nil {
		t.Fatalf("expected locked directory error")
	}
}

func TestFileStoreReloadMarksInterrupted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Create(ctx, model.JobRecord{JobID: "live", Status: model.StatusPending}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, model.JobRecord{JobID: "done", Status: model.StatusPending}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "done", func(r *model.JobRecord) error {
		r.Status = model.StatusFinished
		r.Progress = 100
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Interrupted(ctx, "server restarted")
	if err != nil {
		t.Fatalf("interrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted job, got %d", n)
	}
	live, _ := reopened.Get(ctx, "live")
	if live.Status != model.StatusError || live.ErrorDetail != "server restarted" {
		t.Fatalf("unexpected live record: %#v", live)
	}
	done, _ := reopened.Get(ctx, "done")
	if done.Status != model.StatusFinished {
		t.Fatalf("terminal record changed: %#v", done)
	}
}

func TestFileStorePrune(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Create(ctx, model.JobRecord{JobID: "old", Status: model.StatusPending}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "old", func(r *model.JobRecord) error {
		r.Status = model.StatusError
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, model.JobRecord{JobID: "running", Status: model.StatusPending}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned job, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.json")); !os.IsNotExist(err) {
		t.Fatalf("expected old.json removed, stat err=%v", err)
	}
	if rec, _ := s.Get(ctx, "running"); rec == nil {
		t.Fatalf("non-terminal job must survive prune")
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("VIDGRAB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VIDGRAB_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := OpenRedisStore(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer s.Close()
	_ = s.rdb.Del(ctx, jobKey("job-a")).Err()
	defer s.rdb.Del(ctx, jobKey("job-a"))

	exerciseStore(t, s)

	ttl, err := s.rdb.TTL(ctx, jobKey("job-a")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestJobKey(t *testing.T) {
	if got := jobKey("abc"); got != "vidgrab:job:abc" {
		t.Fatalf("unexpected key: %q", got)
	}
}
