package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bioneo/stakeledger/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"EOF",
}

// IsConnectionError reports errors that should fail over to memory. Missing
// keys and caller cancellation are not connection errors.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := err.Error()
	for _, s := range connectionErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return kv.ErrNotFound
	case IsConnectionError(err):
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("%w: %v", kv.ErrWrongType, err)
	default:
		return err
	}
}

// Options parses redis://... URLs and bare host:port addresses.
func Options(redisURL string) (*redis.Options, error) {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	return opt, nil
}

// New connects to redisURL and pings it.
func New(redisURL string) (*Store, error) {
	opt, err := Options(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, wrap(err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying client, e.g. for pub/sub.
func (s *Store) Client() *redis.Client {
	return s.client
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	var expiration time.Duration
	if len(ttl) > 0 {
		expiration = ttl[0]
	}
	return wrap(s.client.Set(ctx, key, value, expiration).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return v, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrap(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, wrap(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap(err)
	}
	// -2 means the key does not exist, -1 that it has no expiry
	if ttl == -2 || ttl == -2*time.Second {
		return 0, kv.ErrNotFound
	}
	if ttl < 0 {
		return -1, nil
	}
	return ttl, nil
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	return wrap(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	v, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return v, nil
}

// HGetAll returns ErrNotFound for a missing key; Redis never stores an empty
// hash so an empty reply always means missing.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(result) == 0 {
		return nil, kv.ErrNotFound
	}
	out := make(map[string][]byte, len(result))
	for field, value := range result {
		out[field] = []byte(value)
	}
	return out, nil
}

// List operations

func (s *Store) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	n, err := s.client.LPush(ctx, key, args...).Result()
	return n, wrap(err)
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	return wrap(s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	pipe := s.client.Pipeline()
	exists := pipe.Exists(ctx, key)
	rng := pipe.LRange(ctx, key, start, stop)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrap(err)
	}
	if exists.Val() == 0 {
		return nil, kv.ErrNotFound
	}

	out := make([][]byte, len(rng.Val()))
	for i, v := range rng.Val() {
		out[i] = []byte(v)
	}
	return out, nil
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
