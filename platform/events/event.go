// Package events is the in-process pub/sub layer modules use to talk to
// each other without importing one another. It carries no business logic;
// domain event types live with the modules that publish them.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName uniquely identifies the event type and is the key
	// handlers subscribe under.
	EventName() string
	// OccurredAt is when the event happened.
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events; embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish dispatches to every handler subscribed under the event's
	// name, asynchronously.
	Publish(ctx context.Context, event Event)

	// PublishSync dispatches inline and returns the handlers' errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an event name, as returned by
	// Event.EventName().
	Subscribe(eventName string, handler Handler)
}
