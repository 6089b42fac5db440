package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	r := NewRedis("redis.internal:6380", "secret", 3, "camelwiki:")
	defer r.Close()

	opts := r.Client.Options()
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "camelwiki:", r.prefix)
}

func TestRedisUnreachable(t *testing.T) {
	// Nothing listens on port 1, so every call fails fast.
	r := NewRedis("127.0.0.1:1", "", 0, "test:")
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, ok, err := r.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, r.Set(ctx, "k", "v", time.Minute))
	assert.Error(t, r.Ping(ctx))
}
