package tracker

import (
	"fmt"

	"vidgrab/internal/model"
)

const DefaultStatusText = "Preparing download..."

// State is everything the presentation layer renders. The resolver and the
// orchestrator are its only writers.
type State struct {
	Busy            bool
	SubmitEnabled   bool
	Formats         []model.Format
	Selected        string
	ProgressVisible bool
	Percent         int
	StatusText      string

	activeJobID string
	submitting  bool
	failures    int
}

func NewState() *State {
	return &State{StatusText: DefaultStatusText}
}

func (s *State) ActiveJobID() string { return s.activeJobID }

// JobInFlight reports whether a submission or a tracked job holds the
// progress surface.
func (s *State) JobInFlight() bool {
	return s.submitting || s.activeJobID != ""
}

func (s *State) CanSubmit() bool {
	return s.SubmitEnabled && s.Selected != "" && !s.JobInFlight()
}

func (s *State) PercentLabel() string {
	return model.PercentLabel(s.Percent)
}

func (s *State) SelectFormat(formatID string) error {
	if _, ok := s.format(formatID); !ok {
		return fmt.Errorf("format %q is not among the resolved formats", formatID)
	}
	s.Selected = formatID
	return nil
}

func (s *State) SelectedFormat() (model.Format, bool) {
	return s.format(s.Selected)
}

func (s *State) format(formatID string) (model.Format, bool) {
	if formatID == "" {
		return model.Format{}, false
	}
	for _, f := range s.Formats {
		if f.FormatID == formatID {
			return f, true
		}
	}
	return model.Format{}, false
}

// Reset hides the progress surface, clears the tracked job and re-enables
// submission. Calling it twice is the same as calling it once.
func (s *State) Reset() {
	s.SubmitEnabled = true
	s.ProgressVisible = false
	s.Percent = 0
	s.StatusText = DefaultStatusText
	s.activeJobID = ""
	s.submitting = false
	s.failures = 0
}
