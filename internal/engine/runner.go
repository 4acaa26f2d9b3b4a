package engine

import (
	"context"

	"vidgrab/internal/ytdlp"
)

// Runner is the media tool the engine drives.
type Runner interface {
	Info(ctx context.Context, sourceURL string) (ytdlp.Info, error)
	Download(ctx context.Context, sourceURL, formatID string, onLine func(line string)) error
}

// YTDLPRunner runs the yt-dlp binary found on PATH.
type YTDLPRunner struct {
	DownloadDir string
	CookiesPath string
	JSRuntime   string
}

func (r YTDLPRunner) Info(ctx context.Context, sourceURL string) (ytdlp.Info, error) {
	data, err := ytdlp.DumpInfoJSON(ctx, ytdlp.InfoOptions{
		SourceURL:   sourceURL,
		CookiesPath: r.CookiesPath,
		JSRuntime:   r.JSRuntime,
	})
	if err != nil {
		return ytdlp.Info{}, err
	}
	return ytdlp.ParseInfo(data)
}

func (r YTDLPRunner) Download(ctx context.Context, sourceURL, formatID string, onLine func(line string)) error {
	_, err := ytdlp.Download(ctx, ytdlp.DownloadOptions{
		SourceURL:   sourceURL,
		FormatID:    formatID,
		OutputDir:   r.DownloadDir,
		CookiesPath: r.CookiesPath,
		JSRuntime:   r.JSRuntime,
		Progress: func(_ ytdlp.OutputStream, line string) {
			onLine(line)
		},
	})
	return err
}
