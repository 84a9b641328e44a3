package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaimOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.Claim(ctx, "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Claim(ctx, "abc123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Claim(ctx, "def456", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	ok, _ := m.Claim(ctx, "abc123", time.Minute)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = m.Claim(ctx, "abc123", time.Minute)
	assert.True(t, ok)
	assert.Len(t, m.seen, 1)
}

func TestKeyHidesAssertion(t *testing.T) {
	k := key("abc123")
	assert.NotContains(t, k, "abc123")
	assert.Equal(t, key("abc123"), k)
	assert.NotEqual(t, key("abc124"), k)
}

func TestMemoryRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, _ := m.Claim(ctx, "abc123", time.Minute)
	require.True(t, ok)
	require.NoError(t, m.Release(ctx, "abc123"))

	ok, _ = m.Claim(ctx, "abc123", time.Minute)
	assert.True(t, ok)
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedisClaimOnce(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	ok, err := r.Claim(ctx, "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key("abc123")))

	ok, err = r.Claim(ctx, "abc123", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Claim(ctx, "def456", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClaimExpires(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	ok, _ := r.Claim(ctx, "abc123", time.Minute)
	require.True(t, ok)

	mr.FastForward(time.Minute)
	ok, err := r.Claim(ctx, "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRelease(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	ok, _ := r.Claim(ctx, "abc123", time.Minute)
	require.True(t, ok)
	require.NoError(t, r.Release(ctx, "abc123"))
	assert.False(t, mr.Exists(key("abc123")))

	ok, _ = r.Claim(ctx, "abc123", time.Minute)
	assert.True(t, ok)
}

func TestRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	r, err := NewRedis(context.Background(), addr, "")
	require.NoError(t, err)
	defer r.Close()
	mr.Close()

	_, err = r.Claim(context.Background(), "abc123", time.Minute)
	assert.ErrorContains(t, err, "redis replay guard")

	assert.ErrorContains(t, r.Release(context.Background(), "abc123"), "redis replay guard")

	_, err = NewRedis(context.Background(), addr, "")
	assert.ErrorContains(t, err, "redis ping "+addr)
}
