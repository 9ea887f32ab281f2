package notification

import (
	"log/slog"
	"sync"
	"time"

	"atelier-sync-core/internal/logging"
)

// Notifier is the fire-and-forget notification port. Implementations must
// never let a delivery failure reach the caller.
type Notifier interface {
	Emit(eventType, source string, data map[string]any)
}

// Handler receives events from the bus.
type Handler func(Event)

// Bus is an in-process event bus. It is constructed and injected explicitly;
// there is no package-level instance.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit delivers the event to every subscriber. A panicking subscriber is
// logged and skipped so one bad consumer cannot break the emitter.
func (b *Bus) Emit(eventType, source string, data map[string]any) {
	event := Event{
		Type:   eventType,
		Source: source,
		Data:   data,
		At:     time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("notification handler panicked",
				slog.Any("panic", r),
				slog.String("event", event.Type),
			)
		}
	}()
	h(event)
}

// NoopNotifier discards every event. Useful as a default in tests.
type NoopNotifier struct{}

func (NoopNotifier) Emit(eventType, source string, data map[string]any) {}
