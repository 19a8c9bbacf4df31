package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemory_ExpiresEntries(t *testing.T) {
	clk := &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(0, clk.now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "name:u1", "Ada", time.Minute))

	v, ok, err := c.Get(ctx, "name:u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "name:u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	clk := &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(0, clk.now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "feed:message", "42", 0))
	clk.t = clk.t.Add(365 * 24 * time.Hour)

	v, ok, err := c.Get(ctx, "feed:message")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	require.NoError(t, c.Delete(ctx, "feed:message"))
	_, ok, _ = c.Get(ctx, "feed:message")
	assert.False(t, ok)
}

func TestMemory_EvictsWhenFull(t *testing.T) {
	c := NewMemory(2, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "b", "2", time.Hour))
	require.NoError(t, c.Set(ctx, "c", "3", time.Hour))

	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	assert.Equal(t, 2, n)

	v, ok, _ := c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("COWORK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COWORK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	c := NewRedis(client, "test:"+uuid.NewString()+":")

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
