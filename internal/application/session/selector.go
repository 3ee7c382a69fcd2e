package session

import (
	"sync"

	"github.com/google/uuid"
)

// Selector is a read-only view of one slice of the session context.
// Watchers are only notified when that slice changes.
type Selector[V comparable] struct {
	r  *Resolver
	fn func(Snapshot) V
}

// Select creates a selector over r
func Select[V comparable](r *Resolver, fn func(Snapshot) V) Selector[V] {
	return Selector[V]{r: r, fn: fn}
}

// Get returns the current value
func (s Selector[V]) Get() V {
	return s.fn(s.r.Snapshot())
}

// Watch calls fn whenever the selected value changes
func (s Selector[V]) Watch(fn func(V)) (unsubscribe func()) {
	return s.watchFrom(s.Get(), fn)
}

// watchFrom reports changes relative to seen. A change that lands between
// reading seen and subscribing is reported once the subscription is in place.
func (s Selector[V]) watchFrom(seen V, fn func(V)) (unsubscribe func()) {
	var mu sync.Mutex
	last := seen
	observe := func(v V) {
		mu.Lock()
		if v == last {
			mu.Unlock()
			return
		}
		last = v
		mu.Unlock()
		fn(v)
	}
	unsubscribe = s.r.Subscribe(func(snap Snapshot) { observe(s.fn(snap)) })
	observe(s.Get())
	return unsubscribe
}

// CompanyID selects the active company, uuid.Nil until the context is ready
func CompanyID(r *Resolver) Selector[uuid.UUID] {
	return Select(r, Snapshot.CompanyID)
}

// UserID selects the signed-in user
func UserID(r *Resolver) Selector[uuid.UUID] {
	return Select(r, Snapshot.UserID)
}

// IsAuthenticated selects whether someone is signed in
func IsAuthenticated(r *Resolver) Selector[bool] {
	return Select(r, func(s Snapshot) bool { return s.IsAuthenticated })
}

// IsPlatformAdmin selects the platform-admin flag
func IsPlatformAdmin(r *Resolver) Selector[bool] {
	return Select(r, func(s Snapshot) bool { return s.IsPlatformAdmin })
}

// ContextLoaded selects the platform-context gate
func ContextLoaded(r *Resolver) Selector[bool] {
	return Select(r, func(s Snapshot) bool { return s.PlatformContextLoaded })
}
