package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Format is one selectable output option offered for a source URL.
type Format struct {
	FormatID    string `json:"format_id"`
	Description string `json:"description"`
	Extension   string `json:"ext"`
}

func (f Format) Label() string {
	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		desc = "unknown"
	}
	return fmt.Sprintf("%s (%s)", desc, f.Extension)
}

// JobState is the status document served for a single job.
type JobState struct {
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	ErrorDetail string  `json:"error_detail,omitempty"`
}

// JobRecord is the backend-side record of one download job.
type JobRecord struct {
	JobID       string    `json:"job_id"`
	SourceURL   string    `json:"source_url"`
	FormatID    string    `json:"format_id"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r JobRecord) State() JobState {
	st := JobState{
		Progress: r.Progress,
		Status:   r.Status,
	}
	if r.Status == StatusError {
		st.ErrorDetail = r.ErrorDetail
	}
	return st
}

type HistoryEntry struct {
	JobID             string `json:"job_id"`
	SourceURL         string `json:"source_url"`
	FormatLabel       string `json:"format_label"`
	LastKnownProgress int    `json:"last_known_progress"`
}

// RoundPercent coerces a raw progress value to a whole percentage in [0,100].
func RoundPercent(raw float64) int {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if raw >= 100 {
		return 100
	}
	return int(math.Round(raw))
}

func PercentLabel(pct int) string {
	return fmt.Sprintf("%d%%", pct)
}
