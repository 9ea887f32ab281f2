package notification

import (
	"testing"
	"time"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var first, second []Event
	bus.Subscribe(func(e Event) { first = append(first, e) })
	bus.Subscribe(func(e Event) { second = append(second, e) })

	bus.Emit(EventSyncStarted, "test", map[string]any{"device_id": "d1"})

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries = %d, %d; want 1, 1", len(first), len(second))
	}
	if first[0].Type != EventSyncStarted {
		t.Errorf("Type = %s, want %s", first[0].Type, EventSyncStarted)
	}
	if first[0].Source != "test" {
		t.Errorf("Source = %s, want test", first[0].Source)
	}
	if first[0].Data["device_id"] != "d1" {
		t.Errorf("Data = %v", first[0].Data)
	}
	if first[0].At.IsZero() {
		t.Error("expected event timestamp set")
	}
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(func(e Event) { panic("broken consumer") })

	var delivered []Event
	bus.Subscribe(func(e Event) { delivered = append(delivered, e) })

	bus.Emit(EventSystemError, "test", nil)

	if len(delivered) != 1 {
		t.Errorf("deliveries after panic = %d, want 1", len(delivered))
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic or block.
	bus.Emit(EventSyncCompleted, "test", nil)
}

func TestBus_SubscribeAfterEmit(t *testing.T) {
	bus := NewBus()
	bus.Emit(EventSyncStarted, "test", nil)

	var delivered []Event
	bus.Subscribe(func(e Event) { delivered = append(delivered, e) })

	bus.Emit(EventSyncCompleted, "test", nil)

	if len(delivered) != 1 {
		t.Errorf("deliveries = %d, want only the event after subscribing", len(delivered))
	}
}

func TestAuditSubscriber(t *testing.T) {
	var entries []AuditEntry
	logger := auditFunc(func(e AuditEntry) { entries = append(entries, e) })

	bus := NewBus()
	bus.Subscribe(AuditSubscriber(logger))

	at := time.Now()
	bus.Emit(EventConflictDetected, "conflict-service", map[string]any{"conflict_id": "c1"})

	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Action != EventConflictDetected {
		t.Errorf("Action = %s, want %s", entries[0].Action, EventConflictDetected)
	}
	if entries[0].Data["conflict_id"] != "c1" {
		t.Errorf("Data = %v", entries[0].Data)
	}
	if entries[0].At.Before(at) {
		t.Error("expected audit timestamp from the event")
	}
}

type auditFunc func(AuditEntry)

func (f auditFunc) Log(entry AuditEntry) { f(entry) }
