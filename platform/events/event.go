// Package events is the in-process event bus the modules talk through:
// orders announce creation and status changes, catalog imports announce
// their counts, support announces new questions, and the bot notifier
// turns those into chat messages. Delivery is fire-and-forget; a slow or
// failing subscriber never blocks the publishing request.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type, e.g. "orders.order.created".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a new event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler registered for its name.
	// Delivery is asynchronous; handler errors are logged, not returned.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler for the given Event.EventName value.
	Subscribe(eventName string, handler Handler)
}
