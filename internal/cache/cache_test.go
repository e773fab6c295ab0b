// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	assert.Equal(t, Stats{Hits: 1, Misses: 2, Sets: 1}, c.Stats())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []byte("1"), time.Second)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	now = now.Add(2 * time.Second)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	assert.Equal(t, 1, c.deleteExpired())
	st := c.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, 1, st.CurrentSize)
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer func() { _ = c.Close() }()

	buf := []byte("abc")
	c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'
	got, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCacheJanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(time.Millisecond)
	c.Set(context.Background(), "k", []byte("v"), time.Nanosecond)
	require.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Millisecond)
	defer func() { _ = c.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(ctx, "k", []byte{byte(j)}, time.Minute)
				c.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()
	st := c.Stats()
	assert.Equal(t, int64(800), st.Sets)
	assert.Equal(t, int64(800), st.Hits+st.Misses)
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Options{Backend: BackendMemory}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	require.NoError(t, c.Close())

	c, err = New(ctx, Options{Backend: BackendNone}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = New(ctx, Options{Backend: "memcached"}, zerolog.Nop())
	assert.Error(t, err)
}
