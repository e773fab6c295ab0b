// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/dmaic/internal/resilience"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	_, ok := c.Get(ctx, "run")
	assert.False(t, ok)

	c.Set(ctx, "run", []byte(`{"p":0.01}`), time.Minute)
	assert.True(t, mr.Exists(keyPrefix+"run"))

	got, ok := c.Get(ctx, "run")
	require.True(t, ok)
	assert.JSONEq(t, `{"p":0.01}`, string(got))

	c.Delete(ctx, "run")
	assert.False(t, mr.Exists(keyPrefix+"run"))

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Sets)
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	c.Set(ctx, "k", []byte("v"), 10*time.Second)
	assert.Equal(t, 10*time.Second, mr.TTL(keyPrefix+"k"))
	mr.FastForward(11 * time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheStatsCountsPrefixOnly(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	require.NoError(t, mr.Set("other", "x"))
	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	assert.Equal(t, 2, c.Stats().CurrentSize)
}

func TestRedisCacheHealth(t *testing.T) {
	c, mr := newTestRedis(t)
	require.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))

	// Failures degrade to misses.
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisCacheBreakerBypassesDeadServer(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	mr.Close()

	for range breakerThreshold {
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateOpen, c.breaker.State())

	// Open breaker short-circuits to a miss.
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.Equal(t, int64(0), c.Stats().Sets)
}

func TestRedisCacheMissDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	for range breakerThreshold + 1 {
		_, ok := c.Get(ctx, "absent")
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateClosed, c.breaker.State())
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}
