package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vidgrab/internal/config"
	"vidgrab/internal/model"
	"vidgrab/internal/remote"
	"vidgrab/internal/tracker"
)

var (
	uiTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	uiMutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	uiErrorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	uiOKStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	uiPanelStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	uiFocusPanelStyle = uiPanelStyle.BorderForeground(lipgloss.Color("62"))
	uiSelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	uiModalStyle      = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("203")).Padding(1, 3)
)

const (
	uiFormatRows  = 8
	uiHistoryRows = 6
)

type uiFocus int

const (
	focusURL uiFocus = iota
	focusFormats
	focusHistory
)

// statusWatcher opens a pushed status stream for a job.
type statusWatcher interface {
	WatchStatus(ctx context.Context, jobID string) (<-chan remote.StatusUpdate, error)
}

// noticeQueue collects notifications; the view shows the oldest as a modal
// until it is dismissed.
type noticeQueue struct {
	items []string
}

func (q *noticeQueue) Notify(message string) {
	q.items = append(q.items, message)
}

func (q *noticeQueue) current() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

func (q *noticeQueue) dismiss() {
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}

type formatsResolvedMsg struct {
	url     string
	formats []model.Format
	err     error
}

type submittedMsg struct {
	req   tracker.SubmitRequest
	jobID string
	err   error
}

type pollTickMsg struct {
	jobID string
}

type statusMsg struct {
	jobID string
	state model.JobState
	err   error
}

type watchStartedMsg struct {
	jobID   string
	updates <-chan remote.StatusUpdate
	err     error
}

type pushedMsg struct {
	jobID   string
	update  remote.StatusUpdate
	ok      bool
	updates <-chan remote.StatusUpdate
}

type uiModel struct {
	ctx     context.Context
	session *tracker.Session
	notices *noticeQueue
	watcher statusWatcher
	server  string

	input   textinput.Model
	spinner spinner.Model
	bar     progress.Model

	focus         uiFocus
	formatCursor  int
	historyCursor int
	hidden        map[string]bool

	width  int
	height int
}

func runUI(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	opts := bindClientFlags(fs, cfg)
	push := fs.Bool("push", false, "follow progress over the websocket stream instead of polling")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := opts.validate(); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("ui requires an interactive terminal (TTY); use formats or fetch instead")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := opts.client()
	notices := &noticeQueue{}
	session := tracker.NewSession(client, notices, opts.policy())
	var watcher statusWatcher
	if *push {
		watcher = client
	}

	p := tea.NewProgram(newUIModel(ctx, session, notices, watcher, client.BaseURL()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("ui requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

func newUIModel(ctx context.Context, session *tracker.Session, notices *noticeQueue, watcher statusWatcher, server string) uiModel {
	input := textinput.New()
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = 60
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = uiOKStyle

	return uiModel{
		ctx:     ctx,
		session: session,
		notices: notices,
		watcher: watcher,
		server:  server,
		input:   input,
		spinner: spin,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		focus:   focusURL,
		hidden:  map[string]bool{},
	}
}

func (m uiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	state := m.session.State
	orch := m.session.Orchestrator

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = clampInt(msg.Width-8, 20, 120)
		m.bar.Width = clampInt(msg.Width-16, 10, 80)
		return m, nil
	case spinner.TickMsg:
		if !state.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case formatsResolvedMsg:
		if err := m.session.Resolver.CompleteResolve(msg.url, msg.formats, msg.err); err != nil {
			return m, nil
		}
		m.formatCursor = 0
		if len(state.Formats) > 0 {
			m.setFocus(focusFormats)
		}
		return m, nil
	case submittedMsg:
		if err := orch.CompleteSubmit(msg.req, msg.jobID, msg.err); err != nil {
			return m, nil
		}
		m.historyCursor = 0
		if m.watcher != nil {
			return m, watchCmd(m.ctx, m.watcher, msg.jobID)
		}
		return m, pollAfter(orch.Policy().Interval, msg.jobID)
	case pollTickMsg:
		if msg.jobID != state.ActiveJobID() {
			return m, nil
		}
		return m, statusCmd(m.ctx, orch, msg.jobID)
	case statusMsg:
		step := orch.ApplyStatus(msg.jobID, msg.state, msg.err)
		if step.Outcome == tracker.OutcomeContinue || step.Outcome == tracker.OutcomeRetry {
			return m, pollAfter(step.Delay, step.JobID)
		}
		return m, nil
	case watchStartedMsg:
		if msg.jobID != state.ActiveJobID() {
			return m, nil
		}
		if msg.err != nil {
			return m, pollAfter(orch.Policy().Interval, msg.jobID)
		}
		return m, waitPushCmd(msg.jobID, msg.updates)
	case pushedMsg:
		u := msg.update
		if !msg.ok {
			u = remote.StatusUpdate{Err: &remote.TransportError{Op: "watch progress", Err: errors.New("stream ended before a terminal status")}}
		}
		step := orch.ApplyStatus(msg.jobID, u.State, u.Err)
		switch step.Outcome {
		case tracker.OutcomeContinue:
			return m, waitPushCmd(msg.jobID, msg.updates)
		case tracker.OutcomeRetry:
			return m, pollAfter(step.Delay, step.JobID)
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	if m.focus == focusURL {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m uiModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.session.Orchestrator.Abandon()
		return m, tea.Quit
	}
	if _, ok := m.notices.current(); ok {
		switch msg.String() {
		case "enter", "esc", " ":
			m.notices.dismiss()
		}
		return m, nil
	}

	switch msg.String() {
	case "tab":
		m.setFocus((m.focus + 1) % 3)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + 2) % 3)
		return m, nil
	}

	switch m.focus {
	case focusFormats:
		return m.updateFormats(msg)
	case focusHistory:
		return m.updateHistory(msg)
	default:
		return m.updateURL(msg)
	}
}

func (m uiModel) updateURL(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		url, err := m.session.Resolver.BeginResolve(m.input.Value())
		if err != nil {
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, resolveCmd(m.ctx, m.session.Resolver, url))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m uiModel) updateFormats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.session.State
	switch msg.String() {
	case "q":
		m.session.Orchestrator.Abandon()
		return m, tea.Quit
	case "up", "k":
		if m.formatCursor > 0 {
			m.formatCursor--
		}
	case "down", "j":
		if m.formatCursor < len(state.Formats)-1 {
			m.formatCursor++
		}
	case "enter", " ":
		if m.formatCursor < len(state.Formats) {
			_ = state.SelectFormat(state.Formats[m.formatCursor].FormatID)
		}
	case "d":
		return m, m.submit()
	}
	return m, nil
}

func (m uiModel) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleHistory()
	switch msg.String() {
	case "q":
		m.session.Orchestrator.Abandon()
		return m, tea.Quit
	case "up", "k":
		if m.historyCursor > 0 {
			m.historyCursor--
		}
	case "down", "j":
		if m.historyCursor < len(visible)-1 {
			m.historyCursor++
		}
	case "x", "delete":
		if m.historyCursor < len(visible) {
			m.hidden[visible[m.historyCursor].JobID] = true
			m.historyCursor = clampInt(m.historyCursor, 0, maxInt(len(visible)-2, 0))
		}
	case "a":
		m.hidden = map[string]bool{}
	case "d":
		return m, m.submit()
	}
	return m, nil
}

// submit is a no-op while the download action is disabled.
func (m uiModel) submit() tea.Cmd {
	state := m.session.State
	if !state.SubmitEnabled || state.JobInFlight() {
		return nil
	}
	req, err := m.session.Orchestrator.BeginSubmit(m.input.Value(), state.Selected)
	if err != nil {
		return nil
	}
	return submitCmd(m.ctx, m.session.Orchestrator, req)
}

func (m *uiModel) setFocus(f uiFocus) {
	m.focus = f
	if f == focusURL {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m uiModel) visibleHistory() []model.HistoryEntry {
	entries := m.session.History()
	out := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if !m.hidden[e.JobID] {
			out = append(out, e)
		}
	}
	return out
}

func resolveCmd(ctx context.Context, r *tracker.Resolver, url string) tea.Cmd {
	return func() tea.Msg {
		formats, err := r.FetchFormats(ctx, url)
		return formatsResolvedMsg{url: url, formats: formats, err: err}
	}
}

func submitCmd(ctx context.Context, o *tracker.Orchestrator, req tracker.SubmitRequest) tea.Cmd {
	return func() tea.Msg {
		jobID, err := o.FetchSubmit(ctx, req)
		return submittedMsg{req: req, jobID: jobID, err: err}
	}
}

func pollAfter(d time.Duration, jobID string) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollTickMsg{jobID: jobID}
	})
}

func statusCmd(ctx context.Context, o *tracker.Orchestrator, jobID string) tea.Cmd {
	return func() tea.Msg {
		st, err := o.FetchStatus(ctx, jobID)
		return statusMsg{jobID: jobID, state: st, err: err}
	}
}

func watchCmd(ctx context.Context, w statusWatcher, jobID string) tea.Cmd {
	return func() tea.Msg {
		updates, err := w.WatchStatus(ctx, jobID)
		return watchStartedMsg{jobID: jobID, updates: updates, err: err}
	}
}

func waitPushCmd(jobID string, updates <-chan remote.StatusUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		return pushedMsg{jobID: jobID, update: u, ok: ok, updates: updates}
	}
}

func (m uiModel) View() string {
	if notice, ok := m.notices.current(); ok {
		return m.renderNotice(notice)
	}

	width := 80
	if m.width > 0 {
		width = clampInt(m.width-2, 40, 120)
	}
	inner := width - 4

	var b strings.Builder
	b.WriteString(uiTitleStyle.Render("vidgrab"))
	b.WriteString("  ")
	b.WriteString(uiMutedStyle.Render(m.server))
	b.WriteString("\n\n")

	b.WriteString(m.panel(focusURL, width).Render(m.renderURL()))
	b.WriteString("\n")
	b.WriteString(m.panel(focusFormats, width).Render(m.renderFormats(inner)))
	b.WriteString("\n")
	if m.session.State.ProgressVisible {
		b.WriteString(uiPanelStyle.Width(width).Render(m.renderProgress(inner)))
		b.WriteString("\n")
	}
	b.WriteString(m.panel(focusHistory, width).Render(m.renderHistory(inner)))
	b.WriteString("\n")
	b.WriteString(uiMutedStyle.Render(wrapOrTrim("tab focus • enter resolve/select • d download • x hide • a show all • ctrl+c quit", width)))
	return b.String()
}

func (m uiModel) panel(f uiFocus, width int) lipgloss.Style {
	if m.focus == f {
		return uiFocusPanelStyle.Width(width)
	}
	return uiPanelStyle.Width(width)
}

func (m uiModel) renderURL() string {
	var b strings.Builder
	b.WriteString(uiTitleStyle.Render("Video URL"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if m.session.State.Busy {
		b.WriteString("\n")
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(uiMutedStyle.Render("Resolving formats..."))
	}
	return b.String()
}

func (m uiModel) renderFormats(width int) string {
	state := m.session.State
	var b strings.Builder
	b.WriteString(uiTitleStyle.Render("Formats"))
	b.WriteString("\n")
	if len(state.Formats) == 0 {
		b.WriteString(uiMutedStyle.Render("(resolve a URL to list formats)"))
	} else {
		start, end := listWindow(len(state.Formats), m.formatCursor, uiFormatRows)
		for i := start; i < end; i++ {
			f := state.Formats[i]
			marker := "○"
			if f.FormatID == state.Selected {
				marker = "●"
			}
			line := truncateRunes(fmt.Sprintf("%s %-10s %s", marker, f.FormatID, f.Label()), width)
			if m.focus == focusFormats && i == m.formatCursor {
				line = uiSelStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	if state.CanSubmit() {
		b.WriteString(uiOKStyle.Render("[d] Download " + state.Selected))
	} else {
		b.WriteString(uiMutedStyle.Render("[d] Download (" + m.submitHint() + ")"))
	}
	return b.String()
}

func (m uiModel) submitHint() string {
	state := m.session.State
	switch {
	case state.JobInFlight():
		return "a download is in progress"
	case len(state.Formats) == 0:
		return "no formats"
	case state.Selected == "":
		return "choose a format"
	default:
		return "disabled"
	}
}

func (m uiModel) renderProgress(width int) string {
	state := m.session.State
	var b strings.Builder
	b.WriteString(m.bar.ViewAs(float64(state.Percent) / 100))
	b.WriteString(" ")
	b.WriteString(state.PercentLabel())
	b.WriteString("\n")
	b.WriteString(truncateRunes(kv("Status", state.StatusText), width))
	return b.String()
}

func (m uiModel) renderHistory(width int) string {
	all := m.session.History()
	visible := m.visibleHistory()
	var b strings.Builder
	b.WriteString(uiTitleStyle.Render("History"))
	if hidden := len(all) - len(visible); hidden > 0 {
		b.WriteString(uiMutedStyle.Render(fmt.Sprintf("  (%d hidden)", hidden)))
	}
	b.WriteString("\n")
	if len(visible) == 0 {
		b.WriteString(uiMutedStyle.Render("(no downloads yet)"))
		return b.String()
	}
	start, end := listWindow(len(visible), m.historyCursor, uiHistoryRows)
	for i := start; i < end; i++ {
		e := visible[i]
		line := truncateRunes(fmt.Sprintf("%4s  %s  %s", model.PercentLabel(e.LastKnownProgress), e.FormatLabel, e.SourceURL), width)
		if m.focus == focusHistory && i == m.historyCursor {
			line = uiSelStyle.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m uiModel) renderNotice(notice string) string {
	body := uiErrorStyle.Render("Notice") + "\n\n" + lipgloss.NewStyle().Width(60).Render(notice) + "\n\n" + uiMutedStyle.Render("enter to dismiss")
	modal := uiModalStyle.Render(body)
	if m.width <= 0 || m.height <= 0 {
		return modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}
