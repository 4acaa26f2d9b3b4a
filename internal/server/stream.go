package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vidgrab/internal/model"
)

const writeWait = 5 * time.Second

// handleProgressStream pushes the job's status document whenever it changes
// and closes the socket once the job is terminal.
func (s *Server) handleProgressStream(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	jobID := rec.JobID

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("ws id=%s upgrade failed: %v", jobID, err)
		return
	}
	defer conn.Close()

	// The client never sends data; reading only detects a closed peer.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	var last model.JobState
	sent := false
	for {
		state := rec.State()
		if !sent || state != last {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				s.logger.Printf("ws id=%s write failed: %v", jobID, err)
				return
			}
			last, sent = state, true
		}
		if model.IsTerminalStatus(state.Status) {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, state.Status),
				time.Now().Add(writeWait),
			)
			return
		}

		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		next, err := s.jobs.Status(c.Request.Context(), jobID)
		if err != nil {
			s.logger.Printf("ws id=%s status failed: %v", jobID, err)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "status unavailable"),
				time.Now().Add(writeWait),
			)
			return
		}
		rec = next
	}
}
