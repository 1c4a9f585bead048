package jobs

import (
	"testing"

	"github.com/codebuildervaibhav/transcriptor/internal/types"
)

// TestEventBusSequencing: events get increasing sequence numbers and
// timestamps.
func TestEventBusSequencing(t *testing.T) {
	b := NewEventBus(10)

	e1 := b.Publish(Event{JobID: "a", Status: types.StatusDownloading})
	e2 := b.Publish(Event{JobID: "a", Status: types.StatusTranscribing})

	if e1.Seq != 1 || e2.Seq != 2 {
		t.Fatalf("seqs = %d, %d", e1.Seq, e2.Seq)
	}
	if e1.Timestamp.IsZero() {
		t.Fatal("timestamp not assigned")
	}
}

// TestEventBusSinceFiltersByJob: incremental reads see only their job.
func TestEventBusSinceFiltersByJob(t *testing.T) {
	b := NewEventBus(10)
	b.Publish(Event{JobID: "a", Status: types.StatusDownloading})
	b.Publish(Event{JobID: "b", Status: types.StatusDownloading})
	b.Publish(Event{JobID: "a", Status: types.StatusCompleted, Terminal: true})

	events := b.Since("a", 0)
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if !events[1].Terminal {
		t.Fatal("terminal flag lost")
	}

	if got := b.Since("a", events[1].Seq); len(got) != 0 {
		t.Fatalf("expected no events after seq %d, got %v", events[1].Seq, got)
	}
}

// TestEventBusBounded: the buffer drops the oldest events past capacity.
func TestEventBusBounded(t *testing.T) {
	b := NewEventBus(3)
	for i := 0; i < 5; i++ {
		b.Publish(Event{JobID: "a", Status: types.StatusDownloading})
	}

	events := b.Since("a", 0)
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	if events[0].Seq != 3 {
		t.Fatalf("oldest retained seq = %d, want 3", events[0].Seq)
	}
}
