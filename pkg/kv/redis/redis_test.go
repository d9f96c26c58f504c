package redis

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/pkg/kv"
	"github.com/bioneo/stakeledger/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		require.NoError(t, err)
		require.NoError(t, store.Client().FlushDB(context.Background()).Err())
		return store
	})
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{redis.Nil, false},
		{context.Canceled, false},
		{syscall.ECONNREFUSED, true},
		{errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), true},
		{errors.New("ERR syntax error"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsConnectionError(tt.err), "%v", tt.err)
	}
}

func TestOptions(t *testing.T) {
	opt, err := Options("127.0.0.1:6379")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opt.Addr)

	opt, err = Options("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
