// Package remote talks to a vidgrab backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidgrab/internal/model"
)

const maxBodyBytes = 4 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// StatusUpdate is one job status document, as read from a poll or a push.
type StatusUpdate struct {
	State model.JobState
	Err   error
}

type formatsResponse struct {
	Formats []model.Format `json:"formats"`
	Error   string         `json:"error"`
}

type downloadResponse struct {
	DownloadID string `json:"download_id"`
	Error      string `json:"error"`
}

type statusResponse struct {
	Progress    *float64 `json:"progress"`
	Status      string   `json:"status"`
	ErrorDetail string   `json:"error_detail"`
	Error       string   `json:"error"`
}

func (c *Client) ResolveFormats(ctx context.Context, sourceURL string) ([]model.Format, error) {
	const op = "get formats"
	var resp formatsResponse
	if err := c.do(ctx, op, http.MethodPost, "/get-formats", map[string]string{"url": sourceURL}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &BackendError{Op: op, Status: http.StatusOK, Message: resp.Error}
	}
	if resp.Formats == nil {
		return []model.Format{}, nil
	}
	return resp.Formats, nil
}

func (c *Client) SubmitJob(ctx context.Context, sourceURL, formatID string) (string, error) {
	const op = "start download"
	var resp downloadResponse
	body := map[string]string{"url": sourceURL, "format": formatID}
	if err := c.do(ctx, op, http.MethodPost, "/download", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &BackendError{Op: op, Status: http.StatusOK, Message: resp.Error}
	}
	if strings.TrimSpace(resp.DownloadID) == "" {
		return "", &TransportError{Op: op, Err: fmt.Errorf("response has no download_id")}
	}
	return resp.DownloadID, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (model.JobState, error) {
	const op = "get progress"
	var resp statusResponse
	if err := c.do(ctx, op, http.MethodGet, "/progress/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return model.JobState{}, err
	}
	return resp.toState(op)
}

// toState applies the wire tolerance rules shared by polling and push.
func (r statusResponse) toState(op string) (model.JobState, error) {
	if r.Error != "" && r.Status != model.StatusError {
		return model.JobState{}, &BackendError{Op: op, Status: http.StatusOK, Message: r.Error}
	}
	if strings.TrimSpace(r.Status) == "" {
		return model.JobState{}, &TransportError{Op: op, Err: fmt.Errorf("response has no status")}
	}
	st := model.JobState{Status: r.Status}
	if r.Progress != nil {
		st.Progress = *r.Progress
	}
	if r.Status == model.StatusError {
		st.ErrorDetail = r.ErrorDetail
		if st.ErrorDetail == "" {
			st.ErrorDetail = r.Error
		}
	}
	return st, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
			return &BackendError{Op: op, Status: resp.StatusCode, Message: payload.Error}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected HTTP status %s", resp.Status)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Health checks that the backend answers /health.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return &BackendError{Op: "health", Status: http.StatusOK, Message: fmt.Sprintf("unexpected status %q", resp.Status)}
	}
	return nil
}
