package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Type identifies a domain event.
type Type string

const (
	TaskAssigned    Type = "task.assigned"
	ReviewRequested Type = "task.review_requested"
	TaskApproved    Type = "task.approved"
	TaskReturned    Type = "task.returned"
)

// Event is published after the state change it describes has committed.
// Subscribers must treat it as a notification, not as authoritative state.
type Event struct {
	Type       Type
	OrgID      uuid.UUID
	TaskID     uuid.UUID
	TaskTitle  string
	ActorID    uuid.UUID
	TargetIDs  []uuid.UUID // users the event concerns (assignees, task owner)
	OccurredAt time.Time
}

// Handler consumes one event. Handlers run concurrently with request
// processing; errors stay inside the handler.
type Handler func(ctx context.Context, ev Event)

// Bus is a small in-process publish/subscribe fanout. Subscriptions happen at
// startup; Publish may be called from any goroutine afterwards.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

// Publish dispatches the event to all subscribed handlers asynchronously.
// Publishing never blocks the caller and never fails: a panicking handler is
// logged and does not affect other handlers.
func (b *Bus) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(ev.Type)).
						Str("task_id", ev.TaskID.String()).
						Msg("Event handler panicked")
				}
			}()
			h(context.Background(), ev)
		}(h)
	}
}
