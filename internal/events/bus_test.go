package events

import (
	"context"
	"errors"
	"testing"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	events []domain.Event
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event domain.Event) error {
	h.events = append(h.events, event)
	return h.err
}

func TestBus_DeliversToAllHandlers(t *testing.T) {
	bus := NewBus()
	first := &recordingHandler{}
	second := &recordingHandler{}
	bus.Subscribe(first)
	bus.Subscribe(second)

	event := domain.FollowCreated{FollowerID: "f1", FollowerUsername: "bob", FollowingID: "u1"}
	bus.Publish(context.Background(), event)

	assert.Equal(t, []domain.Event{event}, first.events)
	assert.Equal(t, []domain.Event{event}, second.events)
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	failing := &recordingHandler{err: errors.New("boom")}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	bus.Publish(context.Background(), domain.UserCreated{UserID: "u1", Username: "alice", Email: "alice@example.com"})

	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestBus_NoHandlers(t *testing.T) {
	bus := NewBus()

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), domain.UserCreated{UserID: "u1"})
	})
}
