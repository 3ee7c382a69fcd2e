package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestStore(t *testing.T, clock *fakeClock, opts ...StoreOption) *Store[string] {
	t.Helper()
	opts = append([]StoreOption{WithClock(clock.Now), WithName("test")}, opts...)
	s := NewStore[string](opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKey(t *testing.T) {
	tenant := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", Key(tenant, ""))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111-2024-01-01", Key(tenant, "2024-01-01"))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111-", TenantPrefix(tenant))
}

func TestStore_TTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	key := Key(uuid.New(), "")

	stored := s.Set(key, []string{"c1"})
	assert.Equal(t, clock.Now(), stored.Timestamp)

	clock.Advance(30 * time.Second)
	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, entry.Data)

	clock.Advance(29*time.Second + 999*time.Millisecond)
	_, ok = s.Get(key)
	assert.True(t, ok, "entry just under the TTL is still fresh")

	clock.Advance(time.Millisecond)
	_, ok = s.Get(key)
	assert.False(t, ok, "entry at the TTL is stale")
	assert.Equal(t, 0, s.Len(), "stale entries are removed on read")

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestStore_StaleDeleteKeepsNewerWrite(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	key := Key(uuid.New(), "")

	old := s.Set(key, []string{"old"})
	clock.Advance(time.Minute)
	s.Set(key, []string{"new"})

	// a reader that saw the expired entry deletes after the rewrite
	s.deleteIfStale(key, old.Timestamp)
	entry, ok := s.Get(key)
	require.True(t, ok, "fresh entry survives a delete for an older stamp")
	assert.Equal(t, []string{"new"}, entry.Data)

	s.deleteIfStale(key, entry.Timestamp)
	assert.Equal(t, 0, s.Len())
}

func TestStore_CustomTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock, WithTTL(5*time.Second))
	assert.Equal(t, 5*time.Second, s.TTL())

	s.Set("k", []string{"v"})
	clock.Advance(5 * time.Second)
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestStore_SetNilStoresEmpty(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("k", nil)
	entry, ok := s.Get("k")
	require.True(t, ok)
	assert.NotNil(t, entry.Data)
	assert.Empty(t, entry.Data)
}

func TestStore_Invalidation(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	a, b := uuid.New(), uuid.New()

	s.Set(Key(a, "2024-01-01"), []string{"a1"})
	s.Set(Key(a, "2024-01-02"), []string{"a2"})
	s.Set(Key(a, ""), []string{"a"})
	s.Set(Key(b, "2024-01-01"), []string{"b1"})

	t.Run("delete removes one key", func(t *testing.T) {
		s.Delete(Key(a, "2024-01-02"))
		_, ok := s.Get(Key(a, "2024-01-02"))
		assert.False(t, ok)
		_, ok = s.Get(Key(a, "2024-01-01"))
		assert.True(t, ok)
	})

	t.Run("tenant invalidation never touches another tenant", func(t *testing.T) {
		removed := s.InvalidateTenant(a)
		assert.Equal(t, 2, removed)

		_, ok := s.Get(Key(a, ""))
		assert.False(t, ok)
		entry, ok := s.Get(Key(b, "2024-01-01"))
		require.True(t, ok)
		assert.Equal(t, []string{"b1"}, entry.Data)
	})

	t.Run("nil tenant invalidates nothing", func(t *testing.T) {
		assert.Equal(t, 0, s.InvalidateTenant(uuid.Nil))
	})

	t.Run("prefix invalidation", func(t *testing.T) {
		assert.Equal(t, 1, s.InvalidateByPrefix(TenantPrefix(b)))
		assert.Equal(t, 0, s.Len())
	})

	t.Run("clear", func(t *testing.T) {
		s.Set("x", []string{"1"})
		s.Set("y", []string{"2"})
		s.Clear()
		assert.Equal(t, 0, s.Len())
		assert.GreaterOrEqual(t, s.Stats().Invalidations, int64(5))
	})

	t.Run("reset stats", func(t *testing.T) {
		s.ResetStats()
		assert.Equal(t, Stats{}, s.Stats())
	})
}

func TestStore_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	clock := newFakeClock()
	s := newTestStore(t, clock, WithMeter(provider.Meter("test")))

	s.Set("k", []string{"v"})
	s.Get("k")
	s.Get("missing")
	s.Delete("k")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["cache.hits"])
	assert.True(t, names["cache.misses"])
	assert.True(t, names["cache.invalidations"])
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	s := NewStore[int]()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
