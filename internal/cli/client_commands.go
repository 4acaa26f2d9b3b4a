package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/model"
	"vidgrab/internal/remote"
	"vidgrab/internal/tracker"
)

type clientOptions struct {
	server   string
	interval time.Duration
	timeout  time.Duration
	retries  int
	backoff  time.Duration
}

func bindClientFlags(fs *flag.FlagSet, cfg *config.Config) *clientOptions {
	o := &clientOptions{}
	fs.StringVar(&o.server, "server", cfg.ServerURL, "backend base URL")
	fs.DurationVar(&o.interval, "interval", cfg.PollInterval, "delay between status polls")
	fs.DurationVar(&o.timeout, "timeout", cfg.PollTimeout, "timeout for a single status poll")
	fs.IntVar(&o.retries, "retries", cfg.PollRetries, "consecutive transport failures tolerated while polling")
	fs.DurationVar(&o.backoff, "backoff", cfg.PollBackoff, "delay before retrying a failed poll")
	return o
}

func (o *clientOptions) validate() error {
	if strings.TrimSpace(o.server) == "" {
		return errors.New("--server must not be empty")
	}
	if o.interval <= 0 {
		return errors.New("--interval must be positive")
	}
	if o.timeout <= 0 {
		return errors.New("--timeout must be positive")
	}
	if o.retries < 0 {
		return errors.New("--retries must not be negative")
	}
	return nil
}

func (o *clientOptions) policy() tracker.PollPolicy {
	return tracker.PollPolicy{
		Interval:   o.interval,
		Timeout:    o.timeout,
		MaxRetries: o.retries,
		Backoff:    o.backoff,
	}
}

func (o *clientOptions) client() *remote.Client {
	return remote.NewClient(o.server, nil)
}

type formatsOutput struct {
	URL     string         `json:"url"`
	Formats []model.Format `json:"formats"`
}

func runFormats(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("formats", flag.ContinueOnError)
	opts := bindClientFlags(fs, cfg)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("usage: vidgrab formats <url> [--server <url>] [--json]")
	}
	if err := opts.validate(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	session := tracker.NewSession(opts.client(), nil, opts.policy())
	formats, err := session.Resolver.Resolve(ctx, positional[0])
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(formatsOutput{URL: strings.TrimSpace(positional[0]), Formats: formats})
	}
	if len(formats) == 0 {
		fmt.Println("no downloadable formats")
		return nil
	}
	for _, f := range formats {
		fmt.Printf("%-12s %s\n", f.FormatID, f.Label())
	}
	return nil
}

type fetchOutput struct {
	JobID    string               `json:"job_id"`
	Outcome  string               `json:"outcome"`
	Status   string               `json:"status,omitempty"`
	Progress int                  `json:"progress"`
	Error    string               `json:"error,omitempty"`
	History  []model.HistoryEntry `json:"history"`
}

func runFetch(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	opts := bindClientFlags(fs, cfg)
	formatID := fs.String("format", "", "format id to download")
	resolve := fs.Bool("resolve", false, "resolve formats first and check that --format is offered")
	push := fs.Bool("push", false, "follow progress over the websocket stream instead of polling")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("usage: vidgrab fetch <url> --format <id> [--resolve] [--push] [--json]")
	}
	if err := opts.validate(); err != nil {
		return err
	}
	sourceURL := positional[0]

	ctx, stop := signalContext()
	defer stop()

	client := opts.client()
	session := tracker.NewSession(client, nil, opts.policy())

	if *resolve {
		if _, err := session.Resolver.Resolve(ctx, sourceURL); err != nil {
			return err
		}
		if err := session.State.SelectFormat(strings.TrimSpace(*formatID)); err != nil {
			return fmt.Errorf("%w (available: %s)", err, formatIDs(session.State.Formats))
		}
	}

	jobID, err := session.Orchestrator.Submit(ctx, sourceURL, *formatID)
	if err != nil {
		return err
	}
	if !*jsonOut {
		entry, _ := session.Ledger.Find(jobID)
		fmt.Printf("submitted: job %s (%s)\n", jobID, entry.FormatLabel)
	}

	onStep := func(step tracker.Step) {
		if *jsonOut {
			return
		}
		printStep(step)
	}

	var last tracker.Step
	var trackErr error
	if *push {
		updates, werr := client.WatchStatus(ctx, jobID)
		if werr != nil {
			fmt.Fprintln(os.Stderr, "push stream unavailable, polling instead:", werr)
			last, trackErr = session.Orchestrator.Track(ctx, onStep)
		} else {
			last, trackErr = session.Orchestrator.TrackStream(ctx, updates, onStep)
		}
	} else {
		last, trackErr = session.Orchestrator.Track(ctx, onStep)
	}

	if *jsonOut {
		out := fetchOutput{
			JobID:    jobID,
			Outcome:  last.Outcome.String(),
			Status:   last.State.Status,
			Progress: last.Percent,
			History:  session.History(),
		}
		if trackErr != nil {
			out.Error = trackErr.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return trackErr
	}

	printHistory(session.History())
	return trackErr
}

func printStep(step tracker.Step) {
	switch step.Outcome {
	case tracker.OutcomeRetry:
		fmt.Printf("job %s: poll failed, retrying in %s: %v\n", step.JobID, step.Delay, step.Err)
	case tracker.OutcomeLost:
		fmt.Printf("job %s: tracking lost\n", step.JobID)
	case tracker.OutcomeStale:
	default:
		fmt.Printf("job %s: %s %s\n", step.JobID, defaultIfEmpty(step.State.Status, "unknown"), model.PercentLabel(step.Percent))
	}
}

func printHistory(entries []model.HistoryEntry) {
	fmt.Println()
	fmt.Println("history:")
	if len(entries) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for _, e := range entries {
		fmt.Printf("  %-4s  %-36s  %s  %s\n", model.PercentLabel(e.LastKnownProgress), e.JobID, e.FormatLabel, e.SourceURL)
	}
}

func formatIDs(formats []model.Format) string {
	if len(formats) == 0 {
		return "none"
	}
	ids := make([]string, 0, len(formats))
	for _, f := range formats {
		ids = append(ids, f.FormatID)
	}
	return strings.Join(ids, ", ")
}
