package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"vidgrab/internal/model"
)

var wsDialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}

// WatchStatus opens the backend's push stream for jobID. The channel yields
// every status document and closes after a terminal state, a stream error
// (delivered as the final update), or ctx cancellation.
func (c *Client) WatchStatus(ctx context.Context, jobID string) (<-chan StatusUpdate, error) {
	const op = "watch progress"
	wsURL, err := c.streamURL(jobID)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	conn, resp, err := wsDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &BackendError{Op: op, Status: resp.StatusCode, Message: "Download not found"}
		}
		return nil, &TransportError{Op: op, Err: err}
	}

	out := make(chan StatusUpdate)
	go func() {
		defer close(out)
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		send := func(u StatusUpdate) bool {
			select {
			case out <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(StatusUpdate{Err: &TransportError{Op: op, Err: fmt.Errorf("stream closed before a terminal status: %w", err)}})
				return
			}
			var payload statusResponse
			if err := json.Unmarshal(data, &payload); err != nil {
				send(StatusUpdate{Err: &TransportError{Op: op, Err: fmt.Errorf("decode push: %w", err)}})
				return
			}
			st, err := payload.toState(op)
			if err != nil {
				send(StatusUpdate{Err: err})
				return
			}
			if !send(StatusUpdate{State: st}) {
				return
			}
			if model.IsTerminalStatus(st.Status) {
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) streamURL(jobID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/progress/" + jobID
	return u.String(), nil
}
