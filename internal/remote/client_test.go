package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vidgrab/internal/model"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", nil)
}

func TestResolveFormatsSendsURL(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/get-formats" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["url"] != "https://example.com/v" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = io.WriteString(w, `{"formats":[{"format_id":"18","description":"360p","ext":"mp4"}]}`)
	})

	formats, err := c.ResolveFormats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(formats) != 1 || formats[0] != (model.Format{FormatID: "18", Description: "360p", Extension: "mp4"}) {
		t.Fatalf("unexpected formats: %#v", formats)
	}
}

func TestResolveFormatsEmptyList(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"formats":[]}`)
	})
	formats, err := c.ResolveFormats(context.Background(), "u")
	if err != nil || formats == nil || len(formats) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v %v", formats, err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantBackend string
	}{
		{"structured error on 200", 200, `{"error":"Unsupported URL"}`, "Unsupported URL"},
		{"structured error on 400", 400, `{"error":"URL is required"}`, "URL is required"},
		{"plain 502", 502, `<html>bad gateway</html>`, ""},
		{"garbage 200", 200, `not json`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.ResolveFormats(context.Background(), "u")
			var be *BackendError
			var te *TransportError
			if tc.wantBackend != "" {
				if !errors.As(err, &be) || be.Message != tc.wantBackend {
					t.Fatalf("expected BackendError %q, got %v", tc.wantBackend, err)
				}
				return
			}
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %v", err)
			}
		})
	}
}

func TestTransportErrorOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient(base, nil).SubmitJob(context.Background(), "u", "18")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestSubmitJob(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["url"] != "u" || body["format"] != "18" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = io.WriteString(w, `{"download_id":"abc"}`)
	})
	id, err := c.SubmitJob(context.Background(), "u", "18")
	if err != nil || id != "abc" {
		t.Fatalf("unexpected %q %v", id, err)
	}
}

func TestSubmitJobMissingID(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.SubmitJob(context.Background(), "u", "18")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestJobStatusWireTolerance(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        model.JobState
		wantErr     bool
		wantBackend bool
	}{
		{"running", `{"progress":35.2,"status":"running"}`, model.JobState{Progress: 35.2, Status: "running"}, false, false},
		{"unknown status", `{"progress":1,"status":"starting"}`, model.JobState{Progress: 1, Status: "starting"}, false, false},
		{"error with detail", `{"progress":40,"status":"error","error_detail":"disk full"}`, model.JobState{Progress: 40, Status: "error", ErrorDetail: "disk full"}, false, false},
		{"error falls back to error field", `{"progress":0,"status":"error","error":"boom"}`, model.JobState{Status: "error", ErrorDetail: "boom"}, false, false},
		{"error field on running", `{"progress":3,"status":"running","error":"lost"}`, model.JobState{}, true, true},
		{"missing status", `{"progress":3}`, model.JobState{}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/progress/job-1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_, _ = io.WriteString(w, tc.body)
			})
			got, err := c.JobStatus(context.Background(), "job-1")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				var be *BackendError
				if tc.wantBackend != errors.As(err, &be) {
					t.Fatalf("backend classification mismatch: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, expected %#v", got, tc.want)
			}
		})
	}
}

func TestJobStatusNotFound(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Download not found"}`)
	})
	_, err := c.JobStatus(context.Background(), "gone")
	var be *BackendError
	if !errors.As(err, &be) || be.Status != http.StatusNotFound || be.Message != "Download not found" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJobStatusHonoursContextTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.JobStatus(ctx, "slow")
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected transport timeout, got %v", err)
	}
}

func TestWatchStatus(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/progress/job-1" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{
			`{"progress":0,"status":"pending"}`,
			`{"progress":55.5,"status":"running"}`,
			`{"progress":100,"status":"finished"}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	updates, err := c.WatchStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	var got []string
	for u := range updates {
		if u.Err != nil {
			t.Fatalf("unexpected stream error: %v", u.Err)
		}
		got = append(got, u.State.Status)
	}
	if strings.Join(got, ",") != "pending,running,finished" {
		t.Fatalf("unexpected statuses: %v", got)
	}
}

func TestWatchStatusStreamDropIsTransportError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"progress":10,"status":"running"}`))
		_ = conn.Close()
	})

	updates, err := c.WatchStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	first := <-updates
	if first.Err != nil || first.State.Status != "running" {
		t.Fatalf("unexpected first update: %#v", first)
	}
	second, ok := <-updates
	var te *TransportError
	if !ok || !errors.As(second.Err, &te) {
		t.Fatalf("expected transport error update, got %#v ok=%v", second, ok)
	}
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel to close after error")
	}
}

func TestWatchStatusUnknownJob(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.WatchStatus(context.Background(), "nope")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:8080":    "ws://127.0.0.1:8080/ws/progress/a%20b",
		"https://example.com/api/": "wss://example.com/api/ws/progress/a%20b",
	}
	for base, want := range tests {
		got, err := NewClient(base, nil).streamURL("a b")
		if err != nil || got != want {
			t.Errorf("streamURL(%q) = %q,%v expected %q", base, got, err, want)
		}
	}
	if _, err := NewClient("ftp://x", nil).streamURL("a"); err == nil {
		t.Errorf("expected unsupported scheme error")
	}
}

func TestHealth(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok","service":"vidgrab"}`)
	})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
