package tracker

import "vidgrab/internal/model"

// Ledger is the session's job history, most recent first. Entries are never
// removed. It is not safe for concurrent use.
type Ledger struct {
	entries []model.HistoryEntry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Prepend(e model.HistoryEntry) {
	l.entries = append([]model.HistoryEntry{e}, l.entries...)
}

// UpdateProgress sets the last known progress of jobID and reports whether
// an entry was found.
func (l *Ledger) UpdateProgress(jobID string, pct int) bool {
	for i := range l.entries {
		if l.entries[i].JobID == jobID {
			l.entries[i].LastKnownProgress = pct
			return true
		}
	}
	return false
}

func (l *Ledger) Find(jobID string) (model.HistoryEntry, bool) {
	for _, e := range l.entries {
		if e.JobID == jobID {
			return e, true
		}
	}
	return model.HistoryEntry{}, false
}

func (l *Ledger) Entries() []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	return len(l.entries)
}
