package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

// Fetcher loads one partition of a tenant's data from the source of truth
type Fetcher[P, T any] func(ctx context.Context, tenantID uuid.UUID, params P) ([]T, error)

// PartitionFunc maps query parameters to the key discriminator.
// Return "" for queries that are scoped to the tenant only.
type PartitionFunc[P any] func(params P) string

// State is the observable result of a query
type State[T any] struct {
	Data      []T    `json:"data"`
	IsLoading bool   `json:"is_loading"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// QueryOption is a functional option for configuring a query
type QueryOption func(*queryOptions)

type queryOptions struct {
	logger       *zap.Logger
	errorMessage func(error) string
}

// WithQueryLogger sets the logger for the query
func WithQueryLogger(logger *zap.Logger) QueryOption {
	return func(o *queryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorMessage sets how fetch failures are turned into user-facing text
func WithErrorMessage(fn func(error) string) QueryOption {
	return func(o *queryOptions) {
		if fn != nil {
			o.errorMessage = fn
		}
	}
}

// Query is a read-through view over a Store for a single consumer.
// Each Load starts a new cycle; only the latest cycle may change the state,
// and starting a cycle cancels the fetch of the previous one.
type Query[P, T any] struct {
	store        *Store[T]
	fetch        Fetcher[P, T]
	partition    PartitionFunc[P]
	logger       *zap.Logger
	errorMessage func(error) string

	mu         sync.Mutex
	started    bool
	closed     bool
	tenantID   uuid.UUID
	params     P
	base       context.Context
	state      State[T]
	version    uint64
	gen        uint64
	cancel     context.CancelFunc
	changed    chan struct{}
	done       chan struct{}
	listeners  map[uint64]func(State[T])
	nextID     uint64
	delivering bool
	delivered  uint64
}

// NewQuery creates a query over store using fetch on misses
func NewQuery[P, T any](store *Store[T], fetch Fetcher[P, T], partition PartitionFunc[P], opts ...QueryOption) *Query[P, T] {
	o := queryOptions{
		logger:       zap.NewNop(),
		errorMessage: func(err error) string { return err.Error() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if partition == nil {
		partition = func(P) string { return "" }
	}

	return &Query[P, T]{
		store:        store,
		fetch:        fetch,
		partition:    partition,
		logger:       o.logger.With(zap.String("cache", store.Name())),
		errorMessage: o.errorMessage,
		base:         context.Background(),
		state:        State[T]{Data: []T{}},
		changed:      make(chan struct{}),
		done:         make(chan struct{}),
		listeners:    make(map[uint64]func(State[T])),
	}
}

// Load runs a load cycle for the given tenant and parameters.
// A nil tenant yields an empty, settled state without fetching. A fresh cache
// entry settles the state before Load returns. Otherwise the fetch runs in the
// background and Await or Subscribe observe its outcome.
//
// ctx only parents the fetch span and carries request values; cancelling it
// does not stop the fetch, which belongs to the query until the next cycle or Close.
func (q *Query[P, T]) Load(ctx context.Context, tenantID uuid.UUID, params P) {
	q.mu.Lock()
	q.base = context.WithoutCancel(ctx)
	q.mu.Unlock()
	q.load(tenantID, params, false)
}

// Invalidate drops the entry for the current key and refetches regardless of TTL
func (q *Query[P, T]) Invalidate() {
	tenantID, params, ok := q.current()
	if !ok {
		return
	}
	if tenantID != uuid.Nil {
		q.store.Delete(Key(tenantID, q.partition(params)))
	}
	q.load(tenantID, params, true)
}

// InvalidateAll drops every partition of the current tenant and refetches
func (q *Query[P, T]) InvalidateAll() {
	tenantID, params, ok := q.current()
	if !ok {
		return
	}
	q.store.InvalidateTenant(tenantID)
	q.load(tenantID, params, true)
}

// LoadAndWait runs a load cycle and waits for it to settle
func (q *Query[P, T]) LoadAndWait(ctx context.Context, tenantID uuid.UUID, params P) (State[T], error) {
	q.Load(ctx, tenantID, params)
	return q.Await(ctx)
}

// Await blocks until the current cycle settles
func (q *Query[P, T]) Await(ctx context.Context) (State[T], error) {
	for {
		q.mu.Lock()
		state := q.state
		closed := q.closed
		changed := q.changed
		q.mu.Unlock()

		if !state.IsLoading {
			if closed {
				return state, ErrCancelled
			}
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// State returns the current state. Data is never nil.
func (q *Query[P, T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// TenantID returns the tenant of the current cycle
func (q *Query[P, T]) TenantID() uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tenantID
}

// Done is closed when the query is closed
func (q *Query[P, T]) Done() <-chan struct{} {
	return q.done
}

// Subscribe registers a listener called after state changes. Listeners are
// called from one goroutine at a time and never see a state older than one
// they have already seen; intermediate states may be skipped.
func (q *Query[P, T]) Subscribe(listener func(State[T])) (unsubscribe func()) {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = listener
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// Close cancels any in-flight fetch and detaches all listeners.
// A closed query ignores further loads.
func (q *Query[P, T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.gen++
	q.cancelInFlight()
	q.state.IsLoading = false
	q.bumpLocked()
	q.listeners = make(map[uint64]func(State[T]))
	close(q.done)
	q.mu.Unlock()
}

func (q *Query[P, T]) current() (uuid.UUID, P, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tenantID, q.params, q.started && !q.closed
}

func (q *Query[P, T]) load(tenantID uuid.UUID, params P, force bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.gen++
	gen := q.gen
	q.started = true
	q.tenantID = tenantID
	q.params = params
	q.cancelInFlight()

	if tenantID == uuid.Nil {
		q.state = State[T]{Data: []T{}}
		q.publishAndUnlock()
		return
	}

	key := Key(tenantID, q.partition(params))
	q.state.IsLoading = true
	q.state.Error = ""
	q.state.Err = nil

	if !force {
		if entry, ok := q.store.Get(key); ok {
			q.state = State[T]{Data: entry.Data}
			q.publishAndUnlock()
			return
		}
	}

	ctx, cancel := context.WithCancel(q.base)
	q.cancel = cancel
	q.publishAndUnlock()

	go q.run(ctx, gen, tenantID, params, key)
}

func (q *Query[P, T]) run(ctx context.Context, gen uint64, tenantID uuid.UUID, params P, key string) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cache", "fetch",
		telemetry.WithAttribute("cache.name", q.store.Name()),
		telemetry.WithAttribute("cache.key", key),
		telemetry.WithAttribute("tenant_id", tenantID.String()))
	defer span.End()

	start := time.Now()
	data, err := q.fetch(ctx, tenantID, params)
	if err == nil && ctx.Err() != nil {
		err = ErrCancelled
	}
	q.store.observeFetch(ctx, time.Since(start), err)

	q.mu.Lock()
	if gen != q.gen || q.closed {
		q.mu.Unlock()
		q.logger.Debug("Discarded superseded fetch result", zap.String("key", key))
		return
	}

	switch {
	case err == nil:
		entry := q.store.Set(key, data)
		q.state = State[T]{Data: entry.Data}
	case IsCancelled(err):
		q.state.IsLoading = false
	default:
		telemetry.RecordError(span, err)
		q.logger.Warn("Cache fetch failed", zap.String("key", key), zap.Error(err))
		q.state = State[T]{Data: []T{}, Error: q.errorMessage(err), Err: err}
	}
	q.cancelInFlight()
	q.publishAndUnlock()
}

// cancelInFlight must be called with mu held
func (q *Query[P, T]) cancelInFlight() {
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
}

// bumpLocked records a state change and wakes waiters; mu must be held
func (q *Query[P, T]) bumpLocked() {
	q.version++
	close(q.changed)
	q.changed = make(chan struct{})
}

// publishAndUnlock records a state change, releases mu and notifies listeners.
// Only one goroutine delivers at a time, and it always delivers the latest
// state, so a slow listener cannot make another cycle's result arrive out of
// order. A publish that finds delivery in progress leaves it to that goroutine.
func (q *Query[P, T]) publishAndUnlock() {
	q.bumpLocked()
	if q.delivering {
		q.mu.Unlock()
		return
	}
	q.delivering = true
	for q.delivered < q.version {
		q.delivered = q.version
		state := q.state
		listeners := make([]func(State[T]), 0, len(q.listeners))
		for _, l := range q.listeners {
			listeners = append(listeners, l)
		}
		q.mu.Unlock()

		for _, l := range listeners {
			q.deliver(l, state)
		}
		q.mu.Lock()
	}
	q.delivering = false
	q.mu.Unlock()
}

func (q *Query[P, T]) deliver(listener func(State[T]), state State[T]) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Panic in query listener", zap.Any("panic", r))
		}
	}()
	listener(state)
}
