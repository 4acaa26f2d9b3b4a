package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vidgrab/internal/config"
	"vidgrab/internal/engine"
	"vidgrab/internal/jobstore"
	"vidgrab/internal/runstore"
	"vidgrab/internal/server"
	"vidgrab/internal/ytdlp"
)

const interruptedDetail = "download interrupted: server restarted"

func runServe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.ListenAddr(), "listen address")
	downloadDir := fs.String("download-dir", cfg.DownloadDir, "directory downloads are written to")
	store := fs.String("store", cfg.JobStore, "job store: memory, file, or redis")
	dataDir := fs.String("data-dir", cfg.JobDataDir, "job record directory for --store file")
	redisURL := fs.String("redis-url", cfg.RedisURL, "redis URL for --store redis")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.DownloadDir = strings.TrimSpace(*downloadDir)
	cfg.JobStore = strings.ToLower(strings.TrimSpace(*store))
	cfg.JobDataDir = strings.TrimSpace(*dataDir)
	cfg.RedisURL = strings.TrimSpace(*redisURL)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(os.Stderr, "vidgrab ", log.LstdFlags)
	if err := ytdlp.CheckDependencies(); err != nil {
		return err
	}
	if _, err := ytdlp.CheckJSRuntime(cfg.JSRuntime); err != nil {
		return err
	}
	if err := runstore.Mkdir(cfg.DownloadDir); err != nil {
		return fmt.Errorf("prepare download dir: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	jobs, err := openJobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobs.Close(); err != nil {
			logger.Printf("close job store: %v", err)
		}
	}()

	eng := engine.New(jobs, engine.YTDLPRunner{
		DownloadDir: cfg.DownloadDir,
		CookiesPath: cfg.CookiesPath,
		JSRuntime:   cfg.JSRuntime,
	}, logger)

	gin.SetMode(cfg.GinMode)
	srv := server.New(eng, server.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		PushInterval:   cfg.PushInterval,
		Logger:         logger,
	})

	logger.Printf("store=%s download_dir=%s", cfg.JobStore, cfg.DownloadDir)
	serveErr := server.ListenAndServe(ctx, *addr, srv.Router(), logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Printf("engine shutdown: %v", err)
	}
	return serveErr
}

// openJobStore builds the configured store. A file store marks jobs left
// running by a previous process as failed and drops expired records.
func openJobStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (jobstore.Store, error) {
	switch cfg.JobStore {
	case config.StoreFile:
		fileStore, err := jobstore.OpenFileStore(cfg.JobDataDir)
		if err != nil {
			return nil, err
		}
		n, err := fileStore.Interrupted(ctx, interruptedDetail)
		if err != nil {
			_ = fileStore.Close()
			return nil, err
		}
		pruned, err := fileStore.Prune(time.Now().Add(-cfg.JobTTL()))
		if err != nil {
			_ = fileStore.Close()
			return nil, err
		}
		logger.Printf("file store %s: %d interrupted, %d expired", cfg.JobDataDir, n, pruned)
		return fileStore, nil
	case config.StoreRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return jobstore.OpenRedisStore(pingCtx, cfg.RedisURL, cfg.JobTTL())
	default:
		return jobstore.NewMemoryStore(), nil
	}
}
