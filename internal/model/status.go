package model

import "fmt"

const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusError    = "error"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending: true,
		StatusRunning: true,
		StatusError:   true,
	},
	StatusRunning: {
		StatusRunning:  true,
		StatusFinished: true,
		StatusError:    true,
	},
	StatusFinished: {},
	StatusError:    {},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok && status != ""
}

// IsTerminalStatus reports whether a raw status string ends polling.
// Unknown strings are treated as still in progress.
func IsTerminalStatus(status string) bool {
	return status == StatusFinished || status == StatusError
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *JobRecord, toStatus string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s)", from, toStatus, job.JobID)
	}
	job.Status = toStatus
	return nil
}
