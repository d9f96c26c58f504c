package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

type Config struct {
	Backend Backend

	// RedisURL is redis://[:password@]host:port/db or a bare host:port.
	RedisURL string

	// JanitorInterval controls how often the in-memory store evicts expired
	// keys. Default: 30 seconds.
	JanitorInterval time.Duration

	// FailoverEnabled keeps serving from memory while Redis is down and
	// promotes Redis back once it answers pings again.
	FailoverEnabled bool

	// ProbeInterval is the Redis recovery probe period. Default: 5 seconds.
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the first Redis ping. Default: 1 second.
	StartupProbeTimeout time.Duration

	// Logger is used for logging failover events. If nil, no logging occurs.
	Logger LogFunc
}

func (c *Config) applyDefaults() {
	if c.JanitorInterval == 0 {
		c.JanitorInterval = 30 * time.Second
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 5 * time.Second
	}
	if c.StartupProbeTimeout == 0 {
		c.StartupProbeTimeout = time.Second
	}
	if c.Logger == nil {
		c.Logger = func(string, ...any) {}
	}
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

func build(backend Backend, cfg Config) (Store, error) {
	factory, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", backend)
	}
	return factory(cfg)
}

// NewStoreFromConfig creates the configured Store. A redis backend that cannot
// be reached at startup degrades to memory instead of failing.
func NewStoreFromConfig(cfg Config) (Store, error) {
	cfg.applyDefaults()

	switch cfg.Backend {
	case BackendMemory:
		return build(BackendMemory, cfg)
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
		}
		return newRedisWithFallback(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func newRedisWithFallback(cfg Config) (Store, error) {
	memory, err := build(BackendMemory, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store for failover: %w", err)
	}

	redis, err := build(BackendRedis, cfg)
	if err != nil {
		cfg.Logger("Redis unavailable at startup; using in-memory store", "error", err.Error())
		return memory, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()
	pingErr := redis.Ping(ctx)

	switch {
	case pingErr == nil && cfg.FailoverEnabled:
		cfg.Logger("Redis healthy at startup; using Redis with in-memory failover")
		return NewFailoverStore(redis, memory, cfg.ProbeInterval, cfg.Logger), nil
	case pingErr == nil:
		memory.Close()
		return redis, nil
	case cfg.FailoverEnabled:
		cfg.Logger("Redis unhealthy at startup; using in-memory store (will retry in background)", "error", pingErr.Error())
		return NewFailoverStoreWithFallbackActive(redis, memory, cfg.ProbeInterval, cfg.Logger), nil
	default:
		redis.Close()
		cfg.Logger("Redis health check failed at startup, using in-memory store", "error", pingErr.Error())
		return memory, nil
	}
}
