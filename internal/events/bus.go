package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(CycleCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SourceStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CycleCompletedEvent:
		event.Publish(b.dispatcher, e)
	case DetectionEvent:
		event.Publish(b.dispatcher, e)
	case SourcesReloadedEvent:
		event.Publish(b.dispatcher, e)
	case SourceMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SourceStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SourceStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CycleCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DetectionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourcesReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler types get a no-op unsubscribe.
		return func() {}
	}
}
