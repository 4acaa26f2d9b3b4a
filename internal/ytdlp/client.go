package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Binary is the executable looked up on PATH.
const Binary = "yt-dlp"

const DefaultOutputTemplate = "%(title)s.%(ext)s"

type InfoOptions struct {
	SourceURL   string
	CookiesPath string
	JSRuntime   string
}

type DownloadOptions struct {
	SourceURL      string
	FormatID       string
	OutputDir      string
	OutputTemplate string
	CookiesPath    string
	JSRuntime      string
	LogWriter      io.Writer
	Progress       func(stream OutputStream, line string)
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func CheckJSRuntime(raw string) (string, error) {
	runtime, ok := normalizeJSRuntime(raw)
	if !ok {
		return "", fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(raw))
	}
	if runtime == "auto" {
		return runtime, nil
	}
	candidates := jsRuntimeBinaryCandidates(runtime)
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err == nil {
			return runtime, nil
		}
	}
	return "", fmt.Errorf("missing dependency for js runtime %q: install one of [%s] or set YTDLP_JS_RUNTIME=auto", runtime, strings.Join(candidates, ", "))
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(Binary); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies only requires yt-dlp; ffmpeg is needed for merged
// formats and is reported separately by DependencyStatus.
func CheckDependencies() error {
	if !DependencyStatus().YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	return nil
}

// DumpInfoJSON returns the single-video info document (`yt-dlp -J`).
func DumpInfoJSON(ctx context.Context, opts InfoOptions) ([]byte, error) {
	if strings.TrimSpace(opts.SourceURL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}

	args := []string{"-J", "--no-playlist", "--no-warnings"}
	args, err := appendCommonArgs(args, opts.CookiesPath, opts.JSRuntime)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.SourceURL)

	cmd := exec.CommandContext(ctx, Binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

func Download(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if strings.TrimSpace(opts.SourceURL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(opts.FormatID) == "" {
		return nil, fmt.Errorf("format is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	template := strings.TrimSpace(opts.OutputTemplate)
	if template == "" {
		template = DefaultOutputTemplate
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"-f", opts.FormatID,
		"-P", opts.OutputDir,
		"-o", template,
	}
	args, err := appendCommonArgs(args, opts.CookiesPath, opts.JSRuntime)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.SourceURL)

	command := append([]string{Binary}, args...)
	if err := runCommand(ctx, args, opts); err != nil {
		return command, err
	}
	return command, nil
}

func appendCommonArgs(args []string, cookies, jsRuntime string) ([]string, error) {
	if strings.TrimSpace(cookies) != "" {
		cookiesPath, err := resolveCookiesPath(cookies)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	return appendJSRuntimeArgs(args, jsRuntime)
}

func appendJSRuntimeArgs(args []string, rawRuntime string) ([]string, error) {
	runtime, ok := normalizeJSRuntime(rawRuntime)
	if !ok {
		return nil, fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(rawRuntime))
	}
	if runtime == "auto" {
		return args, nil
	}
	return append(args, "--no-js-runtimes", "--js-runtimes", runtime), nil
}

func normalizeJSRuntime(raw string) (string, bool) {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "", "auto":
		return "auto", true
	case "deno", "node", "quickjs", "bun":
		return v, true
	default:
		return "", false
	}
}

func jsRuntimeBinaryCandidates(runtime string) []string {
	if runtime == "quickjs" {
		return []string{"quickjs", "qjs"}
	}
	return []string{runtime}
}

func runCommand(ctx context.Context, args []string, opts DownloadOptions) error {
	cmd := exec.CommandContext(ctx, Binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if opts.LogWriter != nil {
				_, _ = io.WriteString(opts.LogWriter, line+"\n")
			}
			mu.Unlock()

			if opts.Progress != nil {
				opts.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
		}
		mu.Lock()
		defer mu.Unlock()
		return &CommandError{Err: err, Stderr: strings.TrimSpace(errBuf.String()), Stdout: strings.TrimSpace(outBuf.String())}
	}
	return nil
}

// CommandError carries the tail of a failed yt-dlp run.
type CommandError struct {
	Err    error
	Stderr string
	Stdout string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("yt-dlp failed: %v\n%s\n%s", e.Err, e.Stderr, e.Stdout)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Summary is the last ERROR line yt-dlp printed, or the exit error.
func (e *CommandError) Summary() string {
	lines := strings.Split(e.Stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return e.Err.Error()
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
