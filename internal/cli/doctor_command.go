package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/jobstore"
	"vidgrab/internal/remote"
	"vidgrab/internal/runstore"
	"vidgrab/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type doctorOptions struct {
	DownloadDir string
	JobStore    string
	JobDataDir  string
	RedisURL    string
	JSRuntime   string
	ServerURL   string
}

func runDoctor(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	downloadDir := fs.String("download-dir", cfg.DownloadDir, "directory downloads are written to")
	serverURL := fs.String("server", "", "also check that this backend answers /health")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	res := doctor(ctx, doctorOptions{
		DownloadDir: strings.TrimSpace(*downloadDir),
		JobStore:    cfg.JobStore,
		JobDataDir:  cfg.JobDataDir,
		RedisURL:    cfg.RedisURL,
		JSRuntime:   cfg.JSRuntime,
		ServerURL:   strings.TrimSpace(*serverURL),
	})
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.OK {
			return errors.New("doctor checks failed")
		}
		return nil
	}

	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func doctor(ctx context.Context, opts doctorOptions) doctorResult {
	checks := make([]doctorCheck, 0, 6)
	dep := ytdlp.DependencyStatus()
	checks = append(checks, doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	checks = append(checks, doctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	runtime, err := ytdlp.CheckJSRuntime(opts.JSRuntime)
	jsCheck := doctorCheck{Name: "dependency:js-runtime", OK: err == nil, Message: "using " + runtime}
	if err != nil {
		jsCheck.Message = err.Error()
	}
	checks = append(checks, jsCheck)

	ok, msg := ensureWritableDir(opts.DownloadDir)
	checks = append(checks, doctorCheck{Name: "directory:downloads", OK: ok, Message: msg})

	switch opts.JobStore {
	case config.StoreFile:
		ok, msg := ensureWritableDir(opts.JobDataDir)
		checks = append(checks, doctorCheck{Name: "directory:jobs", OK: ok, Message: msg})
	case config.StoreRedis:
		checks = append(checks, checkRedis(ctx, opts.RedisURL))
	}

	if opts.ServerURL != "" {
		checks = append(checks, checkServer(ctx, opts.ServerURL))
	}

	res := doctorResult{OK: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			res.OK = false
			break
		}
	}
	return res
}

func checkRedis(ctx context.Context, url string) doctorCheck {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := jobstore.OpenRedisStore(ctx, url, time.Minute)
	if err != nil {
		return doctorCheck{Name: "store:redis", OK: false, Message: err.Error()}
	}
	_ = store.Close()
	return doctorCheck{Name: "store:redis", OK: true, Message: "reachable"}
}

func checkServer(ctx context.Context, baseURL string) doctorCheck {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := remote.NewClient(baseURL, nil).Health(ctx); err != nil {
		return doctorCheck{Name: "server", OK: false, Message: err.Error()}
	}
	return doctorCheck{Name: "server", OK: true, Message: baseURL + " is healthy"}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "vidgrab-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
