package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or field is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrWrongType is returned when a key holds a different kind of value
var ErrWrongType = errors.New("wrong value type for key")

// Store is the subset of Redis the ledger service caches through: plain
// values with TTL, hashes and capped lists.
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Hash operations
	HSet(ctx context.Context, key string, field string, value []byte) error
	HGet(ctx context.Context, key string, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// List operations
	LPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
