// Package tracker holds the client-side job lifecycle: format resolution,
// submission, the polling state machine and the session history.
package tracker

import "vidgrab/internal/model"

// Backend is the full contract the client needs from the server.
type Backend interface {
	FormatSource
	JobBackend
}

// Session wires a resolver and an orchestrator to one shared State and
// Ledger.
type Session struct {
	State        *State
	Ledger       *Ledger
	Resolver     *Resolver
	Orchestrator *Orchestrator
}

func NewSession(backend Backend, notifier Notifier, policy PollPolicy) *Session {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	state := NewState()
	ledger := NewLedger()
	return &Session{
		State:  state,
		Ledger: ledger,
		Resolver: &Resolver{
			source: backend,
			state:  state,
			notify: notifier,
		},
		Orchestrator: &Orchestrator{
			backend: backend,
			state:   state,
			ledger:  ledger,
			notify:  notifier,
			policy:  policy.normalized(),
		},
	}
}

func (s *Session) History() []model.HistoryEntry {
	return s.Ledger.Entries()
}
