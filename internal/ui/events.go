package ui

import (
	"context"
	"sync"
	"time"

	"mcpdesk/internal/domain"
)

// Event names published by the console.
const (
	EventServersUpdated    = "servers:updated"
	EventToolsUpdated      = "tools:updated"
	EventSyncFailed        = "sync:failed"
	EventMutationCommitted = "mutation:committed"
	EventMutationFailed    = "mutation:failed"
)

const defaultEventBufferSize = 64

// Event is a single change notification.
type Event struct {
	Name    string
	At      time.Time
	Payload any
}

// ServersUpdatedEvent carries a newly applied server page.
type ServersUpdatedEvent struct {
	Query domain.ServerQuery
	Total int
	Count int
}

// ToolsUpdatedEvent reports the tool collection changed.
type ToolsUpdatedEvent struct {
	Count int
}

// SyncFailedEvent reports a failed fetch; the previous data stays visible.
type SyncFailedEvent struct {
	Collection string
	Error      *Error
}

// MutationEvent reports the outcome of an optimistic mutation.
type MutationEvent struct {
	Kind     domain.MutationKind
	Target   string
	Enabled  bool
	Category string
	ToolIDs  []domain.ToolID
	Error    *Error
}

// EventHub fans events out to subscribers. Slow subscribers drop events rather than block publishers.
type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	now  func() time.Time
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[chan Event]struct{}),
		now:  time.Now,
	}
}

// Subscribe returns a channel that receives events until ctx is done.
func (h *EventHub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, defaultEventBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers an event to every current subscriber. A nil hub is a no-op.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	evt := Event{Name: name, At: h.now(), Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
