package tracker

import (
	"context"
	"strings"

	"vidgrab/internal/model"
)

type FormatSource interface {
	ResolveFormats(ctx context.Context, sourceURL string) ([]model.Format, error)
}

// Resolver asks the backend which formats a URL offers and publishes them
// on the shared State.
type Resolver struct {
	source FormatSource
	state  *State
	notify Notifier
}

// BeginResolve validates url and marks the resolver busy. The returned URL
// is the trimmed value to fetch.
func (r *Resolver) BeginResolve(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		r.notify.Notify("Please enter a valid URL")
		return "", &ValidationError{Field: "url", Message: "a source URL is required"}
	}
	if r.state.Busy {
		return "", ErrBusy
	}
	r.state.Busy = true
	return url, nil
}

// FetchFormats performs the request only; it does not touch State.
func (r *Resolver) FetchFormats(ctx context.Context, url string) ([]model.Format, error) {
	return r.source.ResolveFormats(ctx, url)
}

// CompleteResolve applies the outcome of FetchFormats and always clears the
// busy flag.
func (r *Resolver) CompleteResolve(url string, formats []model.Format, err error) error {
	r.state.Busy = false
	if err != nil {
		r.state.Formats = nil
		r.state.Selected = ""
		r.state.SubmitEnabled = false
		r.notify.Notify("Error: " + message(err))
		return &ResolutionError{URL: url, Err: err}
	}

	r.state.Formats = append([]model.Format(nil), formats...)
	r.state.Selected = ""
	r.state.SubmitEnabled = !r.state.JobInFlight()
	return nil
}

// Resolve runs a whole resolution synchronously.
func (r *Resolver) Resolve(ctx context.Context, url string) ([]model.Format, error) {
	url, err := r.BeginResolve(url)
	if err != nil {
		return nil, err
	}
	formats, err := r.FetchFormats(ctx, url)
	if err := r.CompleteResolve(url, formats, err); err != nil {
		return nil, err
	}
	return r.state.Formats, nil
}
