// Package events provides the in-process event bus and the intake endpoint
// collaborator services post domain events to.
package events

import (
	"context"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/authorshaven/notify/internal/pkg/ctxlog"
)

// Handler consumes domain events published on the bus.
type Handler interface {
	HandleEvent(ctx context.Context, event domain.Event) error
}

// Bus delivers events to registered handlers synchronously, in registration
// order. A handler error is logged and never propagated, so one failing
// consumer cannot suppress delivery to the others or fail the publisher.
type Bus struct {
	handlers []Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler. Not safe to call concurrently with Publish;
// register all handlers during startup.
func (b *Bus) Subscribe(handler Handler) {
	b.handlers = append(b.handlers, handler)
}

// Publish delivers an event to all handlers.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	logger := ctxlog.FromContext(ctx)

	for _, handler := range b.handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			logger.Error("event handler failed",
				"event_kind", event.Kind(),
				"error", err,
			)
		}
	}
}
