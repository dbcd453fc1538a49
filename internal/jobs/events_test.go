package jobs

import (
	"testing"
	"time"

	"upload-ai/internal/domain"
)

func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{JobID: "a", Type: EventTypeStatus, State: domain.FormStateConverting})
	bus.Publish(Event{JobID: "a", Type: EventTypeProgress, Progress: 0.5})
	bus.Publish(Event{JobID: "a", Type: EventTypeStatus, State: domain.FormStateReady})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[0].Progress != 0.5 || events[1].State != domain.FormStateReady {
		t.Fatalf("unexpected events: %+v", events)
	}
	if got := bus.Since(3); got != nil {
		t.Fatalf("expected nothing after the newest event, got %+v", got)
	}
	if got := bus.LastSeq(); got != 3 {
		t.Fatalf("LastSeq() = %d, want 3", got)
	}
}

func TestEventBusDropsOldest(t *testing.T) {
	bus := NewEventBus(2)
	for _, p := range []float64{0.1, 0.2, 0.3} {
		bus.Publish(Event{Type: EventTypeProgress, Progress: p})
	}

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Progress != 0.3 {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEventBusKeepsTimestamp(t *testing.T) {
	bus := NewEventBus(0)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	kept := bus.Publish(Event{Timestamp: at})
	stamped := bus.Publish(Event{})

	if !kept.Timestamp.Equal(at) {
		t.Fatalf("timestamp overwritten: %v", kept.Timestamp)
	}
	if stamped.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
}

func TestEventBusSinceReturnsCopy(t *testing.T) {
	bus := NewEventBus(4)
	bus.Publish(Event{Message: "original"})

	events := bus.Since(0)
	events[0].Message = "changed"

	if got := bus.Since(0)[0].Message; got != "original" {
		t.Fatalf("buffer mutated through returned slice: %q", got)
	}
}
