package cli

import (
	"context"
	"flag"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/jobstore"
	"vidgrab/internal/model"
	"vidgrab/internal/runstore"
)

func TestOpenJobStoreFileRecoversInterruptedJobs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()
	records := []model.JobRecord{
		{JobID: "running-job", SourceURL: "https://example.com/a", FormatID: "18", Status: model.StatusRunning, Progress: 40, CreatedAt: now, UpdatedAt: now},
		{JobID: "old-job", SourceURL: "https://example.com/b", FormatID: "18", Status: model.StatusFinished, Progress: 100, CreatedAt: now.Add(-3 * time.Hour), UpdatedAt: now.Add(-3 * time.Hour)},
	}
	for _, rec := range records {
		if err := runstore.WriteJSON(filepath.Join(dir, rec.JobID+".json"), rec); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{JobStore: config.StoreFile, JobDataDir: dir, JobExpireMinutes: 60}
	store, err := openJobStore(context.Background(), cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	rec, err := store.Get(context.Background(), "running-job")
	if err != nil || rec == nil {
		t.Fatalf("get running-job: %v", err)
	}
	if rec.Status != model.StatusError || rec.ErrorDetail != interruptedDetail {
		t.Fatalf("expected interrupted job marked as error, got %+v", rec)
	}

	old, err := store.Get(context.Background(), "old-job")
	if err != nil {
		t.Fatal(err)
	}
	if old != nil {
		t.Fatalf("expected expired job pruned, got %+v", old)
	}
}

func TestOpenJobStoreDefaultsToMemory(t *testing.T) {
	store, err := openJobStore(context.Background(), &config.Config{JobStore: config.StoreMemory}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*jobstore.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	format := fs.String("format", "", "")
	jsonOut := fs.Bool("json", false, "")

	positional, err := parseInterspersed(fs, []string{"https://example.com/v", "--format", "18", "--json"})
	if err != nil {
		t.Fatal(err)
	}
	if len(positional) != 1 || positional[0] != "https://example.com/v" {
		t.Fatalf("unexpected positional args %v", positional)
	}
	if *format != "18" || !*jsonOut {
		t.Fatalf("flags after the URL were not parsed: format=%q json=%v", *format, *jsonOut)
	}
}
