package proofcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkgate/proof-verification-gateway/pkg/clock"
)

func newTestCache(t *testing.T, maxSize int, ttl time.Duration) (*Cache, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := New(Config{
		MaxSize:       maxSize,
		TTL:           ttl,
		SweepInterval: 24 * time.Hour, // keep lazy sweeps out of the way
	}, clk)
	return c, clk
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)

	c.Set("proof-1", "key", Outcome{Verified: true, Method: "key"})

	out, ok := c.Get("proof-1", "key")
	require.True(t, ok)
	assert.True(t, out.Verified)
	assert.Equal(t, "key", out.Method)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)

	_, ok := c.Get("unknown", "key")
	assert.False(t, ok)

	// Same proof under a different method is a distinct fingerprint.
	c.Set("proof-1", "key", Outcome{Verified: true})
	_, ok = c.Get("proof-1", "onChain")
	assert.False(t, ok)
}

func TestGetExpiresEntry(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Hour)

	c.Set("proof-1", "key", Outcome{Verified: true})
	require.Equal(t, 1, c.Len())

	clk.Advance(time.Hour + time.Second)

	_, ok := c.Get("proof-1", "key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry must be removed on read")
}

func TestHasDoesNotMutateCounters(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Hour)

	c.Set("proof-1", "key", Outcome{Verified: true})

	assert.True(t, c.Has("proof-1", "key"))
	assert.False(t, c.Has("proof-2", "key"))

	s := c.Stats()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)

	// Has applies the same expiry rule as Get.
	clk.Advance(2 * time.Hour)
	assert.False(t, c.Has("proof-1", "key"))
	assert.Equal(t, 0, c.Len())
}

func TestEvictionKeepsCapacity(t *testing.T) {
	c, clk := newTestCache(t, 2, time.Hour)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("proof-%d", i), "key", Outcome{Verified: true})
		clk.Advance(time.Second)
	}

	assert.Equal(t, 2, c.Len(), "cache must never exceed capacity after an insert")
	// All zero-hit entries: the oldest insert loses.
	assert.False(t, c.Has("proof-0", "key"))
	assert.True(t, c.Has("proof-1", "key"))
	assert.True(t, c.Has("proof-2", "key"))
}

func TestEvictionPrefersLeastHit(t *testing.T) {
	c, clk := newTestCache(t, 2, time.Hour)

	c.Set("A", "key", Outcome{Verified: true})
	clk.Advance(time.Second)
	c.Set("B", "key", Outcome{Verified: true})
	clk.Advance(time.Second)

	// A gets one hit; B stays at zero even though it is newer.
	_, ok := c.Get("A", "key")
	require.True(t, ok)

	c.Set("C", "key", Outcome{Verified: true})

	assert.True(t, c.Has("A", "key"), "hit entry survives eviction")
	assert.False(t, c.Has("B", "key"), "fewest hits, oldest among zero-hit entries")
	assert.True(t, c.Has("C", "key"))
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour)

	c.Set("proof-1", "key", Outcome{Verified: true})
	c.Set("proof-2", "key", Outcome{Verified: false})

	assert.True(t, c.Delete("proof-1", "key"))
	assert.False(t, c.Delete("proof-1", "key"))
	assert.Equal(t, 1, c.Len())

	c.Get("proof-2", "key")
	c.Get("missing", "key")

	c.Clear()
	assert.Equal(t, 0, c.Len())
	s := c.Stats()
	assert.Zero(t, s.Hits, "clear resets counters")
	assert.Zero(t, s.Misses, "clear resets counters")
}

func TestStats(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Hour)

	c.Set("hot", "key", Outcome{Verified: true})
	clk.Advance(time.Minute)
	c.Set("cold", "key", Outcome{Verified: true})

	for i := 0; i < 3; i++ {
		_, ok := c.Get("hot", "key")
		require.True(t, ok)
	}
	c.Get("missing", "key")

	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, 10, s.MaxSize)
	assert.Equal(t, time.Hour, s.TTL)
	assert.Equal(t, uint64(3), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 0.75, s.HitRate, 1e-9)
	assert.Equal(t, time.Minute, s.OldestAge)
	assert.Equal(t, "hot:key", s.TopKey)
	assert.Equal(t, uint64(3), s.TopHits)
}

func TestStatsIgnoresExpiredEntries(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Hour)

	c.Set("old", "key", Outcome{Verified: true})
	_, ok := c.Get("old", "key")
	require.True(t, ok)

	clk.Advance(2 * time.Hour)
	c.Set("fresh", "key", Outcome{Verified: true})
	clk.Advance(time.Minute)

	s := c.Stats()
	assert.Equal(t, 2, s.Size, "expired entry is retained until swept")
	assert.Equal(t, time.Minute, s.OldestAge, "only live entries count toward oldest age")
	assert.Empty(t, s.TopKey, "an expired entry cannot lead the hit count")
}

func TestLazySweepOnSet(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := New(Config{MaxSize: 10, TTL: time.Minute, SweepInterval: time.Minute}, clk)

	c.Set("stale-1", "key", Outcome{})
	c.Set("stale-2", "key", Outcome{})

	clk.Advance(2 * time.Minute)
	c.Set("fresh", "key", Outcome{})

	assert.Equal(t, 1, c.Len(), "set past the sweep interval removes expired entries")
	assert.True(t, c.Has("fresh", "key"))
}

func TestDefaults(t *testing.T) {
	c := New(Config{}, nil)
	s := c.Stats()
	assert.Equal(t, DefaultMaxSize, s.MaxSize)
	assert.Equal(t, DefaultTTL, s.TTL)
}
