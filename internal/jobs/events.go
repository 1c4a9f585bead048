package jobs

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// Event is one status transition of a job, sequenced for incremental reads
// by WebSocket subscribers.
type Event struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	JobID     string       `json:"job_id"`
	Status    types.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	Terminal  bool         `json:"terminal"`
}

// EventBus stores recent status events in a bounded ring and serves
// incremental reads per job.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event, assigning its sequence number and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	return event
}

// Since returns the job's events with sequence strictly greater than seq,
// in publish order.
func (b *EventBus) Since(jobID string, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.JobID == jobID && event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
