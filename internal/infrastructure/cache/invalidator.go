package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantInvalidator drops every cached partition of a tenant
type TenantInvalidator interface {
	InvalidateTenant(tenantID uuid.UUID) int
}

// Invalidator connects stores to a ChangeNotifier. Local writes are announced
// with Notify; remote announcements invalidate the registered store for the entity.
type Invalidator struct {
	notifier ChangeNotifier
	origin   string
	logger   *zap.Logger

	mu        sync.RWMutex
	targets   map[string]TenantInvalidator
	listeners map[uint64]func(ChangeMessage)
	nextID    uint64
}

// NewInvalidator creates an invalidator publishing through notifier
func NewInvalidator(notifier ChangeNotifier, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		notifier:  notifier,
		origin:    uuid.NewString(),
		logger:    logger,
		targets:   make(map[string]TenantInvalidator),
		listeners: make(map[uint64]func(ChangeMessage)),
	}
}

// Origin returns the id stamped on messages published by this process
func (i *Invalidator) Origin() string {
	return i.origin
}

// Register routes change messages for entity to target
func (i *Invalidator) Register(entity string, target TenantInvalidator) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.targets[entity] = target
}

// OnChange registers a listener for remote changes, called after the store
// has been invalidated
func (i *Invalidator) OnChange(listener func(ChangeMessage)) (unsubscribe func()) {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = listener
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

// Notify announces that the tenant's entity data changed
func (i *Invalidator) Notify(ctx context.Context, tenantID uuid.UUID, entity string) error {
	return i.notifier.Publish(ctx, ChangeMessage{
		TenantID: tenantID,
		Entity:   entity,
		Origin:   i.origin,
	})
}

// Run consumes change messages until ctx is done
func (i *Invalidator) Run(ctx context.Context) error {
	return i.notifier.Subscribe(ctx, i.Handle)
}

// Handle applies a change message. Messages published by this process are
// skipped because the writer already invalidated its stores.
func (i *Invalidator) Handle(msg ChangeMessage) {
	if msg.Origin != "" && msg.Origin == i.origin {
		return
	}
	if msg.TenantID == uuid.Nil {
		i.logger.Warn("Ignoring change message without tenant", zap.String("entity", msg.Entity))
		return
	}

	i.mu.RLock()
	target, ok := i.targets[msg.Entity]
	listeners := make([]func(ChangeMessage), 0, len(i.listeners))
	for _, l := range i.listeners {
		listeners = append(listeners, l)
	}
	i.mu.RUnlock()

	if !ok {
		i.logger.Debug("No store registered for entity", zap.String("entity", msg.Entity))
		return
	}

	removed := target.InvalidateTenant(msg.TenantID)
	i.logger.Debug("Applied remote change",
		zap.String("tenant_id", msg.TenantID.String()),
		zap.String("entity", msg.Entity),
		zap.Int("removed", removed))

	for _, l := range listeners {
		l(msg)
	}
}
