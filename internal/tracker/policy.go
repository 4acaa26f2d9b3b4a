package tracker

import "time"

// PollPolicy controls the polling trigger. The zero MaxRetries keeps the
// fatal-on-first-error behaviour; retries only ever apply to transport
// failures, never to errors the backend reported itself.
type PollPolicy struct {
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval: time.Second,
		Timeout:  10 * time.Second,
		Backoff:  2 * time.Second,
	}
}

func (p PollPolicy) normalized() PollPolicy {
	def := DefaultPollPolicy()
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = p.Interval
	}
	return p
}
