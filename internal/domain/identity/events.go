package identity

import (
	"sync"

	"go.uber.org/zap"
)

// AuthEventType is the kind of authentication state change
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "signed_in"
	AuthEventSignedOut      AuthEventType = "signed_out"
	AuthEventTokenRefreshed AuthEventType = "token_refreshed"
)

// AuthEvent is an authentication state change notification
type AuthEvent struct {
	Type    AuthEventType
	Session *AuthSession // nil for sign-out
}

// AuthEventSource delivers authentication state changes
type AuthEventSource interface {
	// Subscribe registers a listener and returns a function that removes it
	Subscribe(listener func(AuthEvent)) (unsubscribe func())
}

// EventHub fans authentication events out to in-process listeners.
// Listeners are called synchronously in registration order.
type EventHub struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(AuthEvent)
	order     []uint64
	logger    *zap.Logger
}

// NewEventHub creates an empty hub
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		listeners: make(map[uint64]func(AuthEvent)),
		logger:    logger,
	}
}

// Subscribe implements AuthEventSource
func (h *EventHub) Subscribe(listener func(AuthEvent)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener
	h.order = append(h.order, id)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit delivers an event to every listener registered at the time of the call
func (h *EventHub) Emit(event AuthEvent) {
	h.mu.RLock()
	targets := make([]func(AuthEvent), 0, len(h.order))
	for _, id := range h.order {
		targets = append(targets, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		h.deliver(fn, event)
	}
}

// Len returns the number of registered listeners
func (h *EventHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *EventHub) deliver(fn func(AuthEvent), event AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in auth event listener",
				zap.String("event", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	fn(event)
}
