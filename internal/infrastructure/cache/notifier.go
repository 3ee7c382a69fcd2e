package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entity names carried by change messages
const (
	EntityAppointments = "appointments"
	EntityClients      = "clients"
)

// DefaultChangeChannel is the Pub/Sub channel for data change notifications
const DefaultChangeChannel = "tidyops:data:changed"

// ChangeMessage signals that a tenant's data changed. It carries no payload;
// receivers treat it purely as an invalidation trigger.
type ChangeMessage struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Entity    string    `json:"entity"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// ChangeNotifier publishes and delivers change messages
type ChangeNotifier interface {
	// Publish sends a change message to all subscribers
	Publish(ctx context.Context, msg ChangeMessage) error

	// Subscribe blocks delivering messages to callback until ctx is done
	Subscribe(ctx context.Context, callback func(msg ChangeMessage)) error

	// Close releases any resources held by the notifier
	Close() error
}

// LocalChangeNotifier delivers change messages within the process
type LocalChangeNotifier struct {
	mu          sync.RWMutex
	subscribers map[uint64]func(ChangeMessage)
	nextID      uint64
	logger      *zap.Logger
	closed      bool
}

// NewLocalChangeNotifier creates an in-process notifier
func NewLocalChangeNotifier(logger *zap.Logger) *LocalChangeNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalChangeNotifier{
		subscribers: make(map[uint64]func(ChangeMessage)),
		logger:      logger,
	}
}

// Publish delivers msg to every current subscriber
func (n *LocalChangeNotifier) Publish(ctx context.Context, msg ChangeMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return fmt.Errorf("notifier closed")
	}
	callbacks := make([]func(ChangeMessage), 0, len(n.subscribers))
	for _, cb := range n.subscribers {
		callbacks = append(callbacks, cb)
	}
	n.mu.RUnlock()

	for _, cb := range callbacks {
		n.deliver(cb, msg)
	}

	n.logger.Debug("Published local change message",
		zap.String("tenant_id", msg.TenantID.String()),
		zap.String("entity", msg.Entity))
	return nil
}

// Subscribe registers callback until ctx is done
func (n *LocalChangeNotifier) Subscribe(ctx context.Context, callback func(msg ChangeMessage)) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return fmt.Errorf("notifier closed")
	}
	id := n.nextID
	n.nextID++
	n.subscribers[id] = callback
	n.mu.Unlock()

	<-ctx.Done()

	n.mu.Lock()
	delete(n.subscribers, id)
	n.mu.Unlock()
	return ctx.Err()
}

// Close stops accepting publications
func (n *LocalChangeNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

func (n *LocalChangeNotifier) deliver(cb func(ChangeMessage), msg ChangeMessage) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Panic in change callback", zap.Any("panic", r))
		}
	}()
	cb(msg)
}

var _ ChangeNotifier = (*LocalChangeNotifier)(nil)
