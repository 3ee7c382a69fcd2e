package workspace

import (
	"sync"

	"github.com/google/uuid"
)

// openQuery is the part of a cache.Query the workspace manages
type openQuery interface {
	TenantID() uuid.UUID
	Invalidate()
	Close()
	Done() <-chan struct{}
}

// queryRegistry tracks long-lived queries so they can be refreshed on remote
// changes and closed with their workspace
type queryRegistry struct {
	mu      sync.Mutex
	queries map[uint64]openQuery
	nextID  uint64
	closed  bool
}

func newQueryRegistry() *queryRegistry {
	return &queryRegistry{queries: make(map[uint64]openQuery)}
}

// add tracks q until it is closed; a closed registry closes q immediately
func (r *queryRegistry) add(q openQuery) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		q.Close()
		return
	}
	id := r.nextID
	r.nextID++
	r.queries[id] = q
	r.mu.Unlock()

	go func() {
		<-q.Done()
		r.mu.Lock()
		delete(r.queries, id)
		r.mu.Unlock()
	}()
}

// refreshTenant refetches every open query showing tenantID
func (r *queryRegistry) refreshTenant(tenantID uuid.UUID) int {
	r.mu.Lock()
	matched := make([]openQuery, 0, len(r.queries))
	for _, q := range r.queries {
		if q.TenantID() == tenantID {
			matched = append(matched, q)
		}
	}
	r.mu.Unlock()

	for _, q := range matched {
		q.Invalidate()
	}
	return len(matched)
}

func (r *queryRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func (r *queryRegistry) closeAll() {
	r.mu.Lock()
	r.closed = true
	queries := r.queries
	r.queries = make(map[uint64]openQuery)
	r.mu.Unlock()

	for _, q := range queries {
		q.Close()
	}
}
