package handlers

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
)

// streamConn is the slice of the WebSocket connection the stream loop
// needs.
type streamConn interface {
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
}

// StreamHandler pushes a job's status events over a WebSocket as an
// alternative to polling. The connection closes after the terminal event.
type StreamHandler struct {
	bus      *jobs.EventBus
	store    *jobs.Store
	log      *logrus.Logger
	interval time.Duration
}

// NewStreamHandler creates a stream handler over the shared event bus.
func NewStreamHandler(bus *jobs.EventBus, store *jobs.Store, log *logrus.Logger) *StreamHandler {
	return &StreamHandler{
		bus:      bus,
		store:    store,
		log:      log,
		interval: 500 * time.Millisecond,
	}
}

func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	h.stream(c.Params("id"), c)
}

// stream replays the job's events from the start, then forwards new ones
// as they are published. An unknown job ID closes immediately, mirroring
// the HTTP 404 contract; idle ticks send a ping so a dead peer surfaces
// as a write error instead of leaking the goroutine.
func (h *StreamHandler) stream(jobID string, conn streamConn) {
	if jobID == "" {
		return
	}
	if _, ok := h.store.Get(jobID); !ok {
		conn.WriteJSON(map[string]string{"error": "job not found", "code": "ERR_JOB_NOT_FOUND"})
		return
	}
	h.log.Infof("WebSocket stream opened for job %s", jobID)

	var lastSeq int64
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for range ticker.C {
		events := h.bus.Since(jobID, lastSeq)
		if len(events) == 0 {
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debugf("WebSocket ping failed for job %s: %v", jobID, err)
				return
			}
			continue
		}
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debugf("WebSocket write failed for job %s: %v", jobID, err)
				return
			}
			lastSeq = event.Seq
			if event.Terminal {
				h.log.Infof("WebSocket stream for job %s done (%s)", jobID, event.Status)
				return
			}
		}
	}
}
