package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_ExpiresEntries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, "candles:BTC", []byte("payload"), time.Minute))

	b, ok, err := c.GetBytes(ctx, "candles:BTC")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), b)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetBytes(ctx, "candles:BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewTTLCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), 0))
	now = now.Add(24 * time.Hour)

	_, ok, _ := c.GetBytes(ctx, "k")
	assert.True(t, ok)
}

func TestTTLCache_Miss(t *testing.T) {
	_, ok, err := NewTTLCache().GetBytes(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	assert.Equal(t, "cs:candles", NewRedisCache(nil, "cs").key("candles"))
	assert.Equal(t, "candles", NewRedisCache(nil, "").key("candles"))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
