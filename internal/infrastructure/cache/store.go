package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

// DefaultTTL is how long a fetched list is served without revalidation
const DefaultTTL = 60 * time.Second

// Entry is a cached list together with the time it was fetched
type Entry[T any] struct {
	Key       string
	Data      []T
	Timestamp time.Time
}

// Age returns how old the entry is at the given time
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Stats is a point-in-time view of store activity
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Invalidations int64 `json:"invalidations"`
	Entries       int   `json:"entries"`
}

// Store is a process-wide TTL store for list-shaped query results.
// Entries older than the TTL are never returned. Construct one per entity type
// at startup and share it between every query for that entity.
type Store[T any] struct {
	items  *ttlcache.Cache[string, Entry[T]]
	ttl    time.Duration
	now    func() time.Time
	name   string
	logger *zap.Logger
	meter  metric.Meter

	hitCounter     *telemetry.Counter
	missCounter    *telemetry.Counter
	invalidCounter *telemetry.Counter
	fetchDuration  *telemetry.Histogram

	// writeMu orders Set against the removal of stale entries
	writeMu sync.Mutex
	stopped int32

	hits          int64
	misses        int64
	sets          int64
	invalidations int64
}

// StoreOption is a functional option for configuring the store
type StoreOption func(*storeOptions)

type storeOptions struct {
	ttl    time.Duration
	now    func() time.Time
	name   string
	logger *zap.Logger
	meter  metric.Meter
}

// WithTTL sets the freshness window
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock sets the time source used for freshness checks
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithName sets the store name used in logs and metric attributes
func WithName(name string) StoreOption {
	return func(o *storeOptions) {
		o.name = name
	}
}

// WithLogger sets the logger for the store
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter sets the meter used for cache metrics
func WithMeter(meter metric.Meter) StoreOption {
	return func(o *storeOptions) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// NewStore creates a store and starts its background eviction loop
func NewStore[T any](opts ...StoreOption) *Store[T] {
	o := storeOptions{
		ttl:    DefaultTTL,
		now:    time.Now,
		name:   "default",
		logger: zap.NewNop(),
		meter:  noop.NewMeterProvider().Meter("cache"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		// Backing eviction runs on wall time and only reclaims memory;
		// freshness is decided by the injected clock in Get.
		items: ttlcache.New(
			ttlcache.WithTTL[string, Entry[T]](o.ttl),
			ttlcache.WithDisableTouchOnHit[string, Entry[T]](),
		),
		ttl:    o.ttl,
		now:    o.now,
		name:   o.name,
		logger: o.logger.With(zap.String("cache", o.name)),
		meter:  o.meter,
	}
	s.initMetrics()

	go s.items.Start()

	return s
}

func (s *Store[T]) initMetrics() {
	var err error
	if s.hitCounter, err = telemetry.NewCounter(s.meter, "cache.hits", "Cache reads served from a fresh entry", "{read}"); err != nil {
		s.logger.Warn("Failed to create cache hit counter", zap.Error(err))
	}
	if s.missCounter, err = telemetry.NewCounter(s.meter, "cache.misses", "Cache reads that required a fetch", "{read}"); err != nil {
		s.logger.Warn("Failed to create cache miss counter", zap.Error(err))
	}
	if s.invalidCounter, err = telemetry.NewCounter(s.meter, "cache.invalidations", "Cache entries removed by invalidation", "{entry}"); err != nil {
		s.logger.Warn("Failed to create cache invalidation counter", zap.Error(err))
	}
	if s.fetchDuration, err = telemetry.NewHistogram(s.meter, telemetry.HistogramOpts{
		Name:        "cache.fetch.duration",
		Description: "Duration of fetches issued on cache misses",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	}); err != nil {
		s.logger.Warn("Failed to create cache fetch histogram", zap.Error(err))
	}
}

// TTL returns the freshness window
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// Name returns the store name
func (s *Store[T]) Name() string {
	return s.name
}

// Get returns the entry for key if it is younger than the TTL.
// Stale entries are removed and reported as a miss.
func (s *Store[T]) Get(key string) (Entry[T], bool) {
	if item := s.items.Get(key); item != nil {
		entry := item.Value()
		if entry.Age(s.now()) < s.ttl {
			atomic.AddInt64(&s.hits, 1)
			s.count(s.hitCounter)
			s.logger.Debug("Cache hit", zap.String("key", key))
			return entry, true
		}
		s.deleteIfStale(key, entry.Timestamp)
	}

	atomic.AddInt64(&s.misses, 1)
	s.count(s.missCounter)
	s.logger.Debug("Cache miss", zap.String("key", key))
	return Entry[T]{}, false
}

// Set stores data under key stamped with the current time.
// A nil slice is stored as an empty one.
func (s *Store[T]) Set(key string, data []T) Entry[T] {
	if data == nil {
		data = []T{}
	}
	entry := Entry[T]{Key: key, Data: data, Timestamp: s.now()}
	s.writeMu.Lock()
	s.items.Set(key, entry, ttlcache.DefaultTTL)
	s.writeMu.Unlock()
	atomic.AddInt64(&s.sets, 1)
	s.logger.Debug("Cached query result",
		zap.String("key", key),
		zap.Int("count", len(data)))
	return entry
}

// deleteIfStale removes key only if it still holds the entry stamped seen,
// so a concurrent Set of a fresh result survives
func (s *Store[T]) deleteIfStale(key string, seen time.Time) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if item := s.items.Get(key); item != nil && item.Value().Timestamp.Equal(seen) {
		s.items.Delete(key)
	}
}

// Delete removes the entry for key
func (s *Store[T]) Delete(key string) {
	if s.items.Has(key) {
		s.items.Delete(key)
		atomic.AddInt64(&s.invalidations, 1)
		s.count(s.invalidCounter)
	}
	s.logger.Debug("Invalidated cache entry", zap.String("key", key))
}

// InvalidateByPrefix removes every entry whose key starts with prefix and
// returns how many were removed
func (s *Store[T]) InvalidateByPrefix(prefix string) int {
	removed := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
			removed++
		}
	}
	s.recordInvalidations(removed)
	s.logger.Debug("Invalidated cache entries by prefix",
		zap.String("prefix", prefix),
		zap.Int("removed", removed))
	return removed
}

// InvalidateTenant removes every partition that belongs to the tenant.
// Unlike a raw prefix match it never touches another tenant whose id shares a prefix.
func (s *Store[T]) InvalidateTenant(tenantID uuid.UUID) int {
	if tenantID == uuid.Nil {
		return 0
	}
	tenant := tenantID.String()
	removed := 0
	for _, key := range s.items.Keys() {
		if key == tenant || strings.HasPrefix(key, tenant+keySeparator) {
			s.items.Delete(key)
			removed++
		}
	}
	s.recordInvalidations(removed)
	s.logger.Debug("Invalidated tenant cache entries",
		zap.String("tenant_id", tenant),
		zap.Int("removed", removed))
	return removed
}

// Clear removes every entry
func (s *Store[T]) Clear() {
	removed := s.items.Len()
	s.items.DeleteAll()
	s.recordInvalidations(removed)
	s.logger.Info("Cleared cache", zap.Int("removed", removed))
}

// Len returns the number of stored entries, fresh or not
func (s *Store[T]) Len() int {
	return s.items.Len()
}

// Stats returns cache statistics
func (s *Store[T]) Stats() Stats {
	return Stats{
		Hits:          atomic.LoadInt64(&s.hits),
		Misses:        atomic.LoadInt64(&s.misses),
		Sets:          atomic.LoadInt64(&s.sets),
		Invalidations: atomic.LoadInt64(&s.invalidations),
		Entries:       s.items.Len(),
	}
}

// ResetStats resets the cache statistics
func (s *Store[T]) ResetStats() {
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.sets, 0)
	atomic.StoreInt64(&s.invalidations, 0)
}

// Close stops the background eviction loop
func (s *Store[T]) Close() error {
	if atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		s.items.Stop()
	}
	return nil
}

func (s *Store[T]) observeFetch(ctx context.Context, d time.Duration, err error) {
	if s.fetchDuration == nil {
		return
	}
	outcome := "ok"
	switch {
	case IsCancelled(err):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	}
	s.fetchDuration.RecordDuration(ctx, d,
		attribute.String("cache", s.name),
		attribute.String("outcome", outcome))
}

func (s *Store[T]) recordInvalidations(n int) {
	if n == 0 {
		return
	}
	atomic.AddInt64(&s.invalidations, int64(n))
	if s.invalidCounter != nil {
		s.invalidCounter.Add(context.Background(), int64(n), attribute.String("cache", s.name))
	}
}

func (s *Store[T]) count(c *telemetry.Counter) {
	if c != nil {
		c.Inc(context.Background(), attribute.String("cache", s.name))
	}
}
