package cache

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelosify/zelosify/server/internal/models"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLExpiresOnRead(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c, err := NewTTL[string](10, 5*time.Minute, clk.Now)
	require.NoError(t, err)

	c.Set("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	clk.Advance(5 * time.Minute)
	_, ok = c.Get("a")
	assert.True(t, ok, "entry exactly at ttl is still fresh")

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestTTLBoundedEviction(t *testing.T) {
	c, err := NewTTL[int](2, time.Hour, nil)
	require.NoError(t, err)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry evicted")
	assert.Equal(t, 2, c.Len())
}

func TestMemoryPrincipalCacheIdempotentWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c, err := NewMemoryPrincipalCache(0, 0, clk.Now)
	require.NoError(t, err)
	ctx := context.Background()

	p := &models.Principal{UserID: "u1", ExternalID: "kc-1", TenantID: "t1", RealmRoles: []string{"IT_VENDOR"}}
	require.NoError(t, c.Store(ctx, "kc-1", p))

	first, ok, err := c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	require.True(t, ok)
	clk.Advance(4 * time.Minute)
	second, ok, err := c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)

	// callers cannot mutate the cached snapshot
	first.RealmRoles[0] = "ADMIN"
	third, _, _ := c.Lookup(ctx, "kc-1")
	assert.Equal(t, "IT_VENDOR", third.RealmRoles[0])

	clk.Advance(2 * time.Minute)
	_, ok, err = c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPrincipalCache(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	c := NewRedisPrincipalCache(client, 5*time.Minute)
	ctx := context.Background()

	_, ok, err := c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	require.False(t, ok)

	p := &models.Principal{UserID: "u1", ExternalID: "kc-1", TenantID: "t1", RealmRoles: []string{"VENDOR_MANAGER"}}
	require.NoError(t, c.Store(ctx, "kc-1", p))
	assert.True(t, m.Exists("principal:kc-1"))

	got, ok, err := c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	m.FastForward(5*time.Minute + time.Second)
	_, ok, err = c.Lookup(ctx, "kc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPrincipalCacheCorruptEntryIsMiss(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Set("principal:kc-1", "{not json"))

	c := NewRedisPrincipalCache(redis.NewClient(&redis.Options{Addr: m.Addr()}), time.Minute)
	_, ok, err := c.Lookup(context.Background(), "kc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
