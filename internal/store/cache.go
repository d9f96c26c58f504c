package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/pkg/kv"
	_ "github.com/bioneo/stakeledger/pkg/kv/memory"
	kvredis "github.com/bioneo/stakeledger/pkg/kv/redis"
)

// Cache keys and pub/sub topics
const (
	KeySnapshotPrefix = "snapshot:"
	KeyPoolStats      = "pools:stats"
	KeyRecentEvents   = "events:recent"

	TopicEvents    = "ledger.events"
	TopicPoolStats = "pools.stats"
)

// RecentEventsLimit caps the event feed kept in the cache.
const RecentEventsLimit = 200

var ErrCacheMiss = errors.New("cache miss")

type Config struct {
	Backend   kv.Backend
	RedisAddr string
}

// Cache holds read-only projections of the ledger (snapshots, pool stats and
// the recent event feed) and carries the event pub/sub.
type Cache struct {
	kv     kv.Store
	pubsub PubSub
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewCache connects to Redis when configured. Without Redis both the store and
// the pub/sub stay in process.
func NewCache(cfg Config, logger *zap.SugaredLogger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         cfg.Backend,
		RedisURL:        cfg.RedisAddr,
		FailoverEnabled: true,
		Logger: func(msg string, fields ...any) {
			logger.Warnw(msg, fields...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kv store: %w", err)
	}

	c := &Cache{kv: store, pubsub: NewHub(), logger: logger}
	if cfg.Backend != kv.BackendRedis {
		return c, nil
	}

	opt, err := kvredis.Options(cfg.RedisAddr)
	if err != nil {
		store.Close()
		return nil, err
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.Warnw("Redis unavailable; using in-memory pubsub", "error", err)
		return c, nil
	}
	c.client = client
	c.pubsub = NewRedisPubSub(client)
	return c, nil
}

// NewWithStore builds a cache over store and pubsub, for tests.
func NewWithStore(store kv.Store, pubsub PubSub, logger *zap.SugaredLogger) *Cache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cache{kv: store, pubsub: pubsub, logger: logger}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.kv.Set(ctx, key, data, ttl); err != nil {
		c.logger.Errorw("Cache set error", "key", key, "error", err)
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Snapshots never expire; every commit overwrites them.
func (c *Cache) SetSnapshot(ctx context.Context, program string, snapshot interface{}) error {
	return c.Set(ctx, KeySnapshotPrefix+program, snapshot, 0)
}

func (c *Cache) GetSnapshot(ctx context.Context, program string, dest interface{}) error {
	return c.Get(ctx, KeySnapshotPrefix+program, dest)
}

func (c *Cache) SetPoolStats(ctx context.Context, program string, stats interface{}) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return c.kv.HSet(ctx, KeyPoolStats, program, data)
}

// PoolStats returns the last published stats of every program.
func (c *Cache) PoolStats(ctx context.Context) (map[string]json.RawMessage, error) {
	all, err := c.kv.HGetAll(ctx, KeyPoolStats)
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	out := make(map[string]json.RawMessage, len(all))
	for program, data := range all {
		out[program] = data
	}
	return out, nil
}

// PushEvent prepends event to the feed and trims it to RecentEventsLimit.
func (c *Cache) PushEvent(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if _, err := c.kv.LPush(ctx, KeyRecentEvents, data); err != nil {
		return fmt.Errorf("cache push error: %w", err)
	}
	return c.kv.LTrim(ctx, KeyRecentEvents, 0, RecentEventsLimit-1)
}

// RecentEvents returns up to n events, newest first.
func (c *Cache) RecentEvents(ctx context.Context, n int) ([]json.RawMessage, error) {
	if n <= 0 || n > RecentEventsLimit {
		n = RecentEventsLimit
	}
	items, err := c.kv.LRange(ctx, KeyRecentEvents, 0, int64(n-1))
	if errors.Is(err, kv.ErrNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache range error: %w", err)
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// Pub/Sub methods for real-time updates
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}
	if err := c.pubsub.Publish(ctx, channel, data); err != nil {
		c.logger.Errorw("Publish error", "channel", channel, "error", err)
		return fmt.Errorf("pubsub publish error: %w", err)
	}
	return nil
}

func (c *Cache) Subscribe(ctx context.Context, channels ...string) Subscription {
	return c.pubsub.Subscribe(ctx, channels...)
}

// IsInMemoryMode returns true when pub/sub runs in process.
func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.kv.Ping(ctx)
}

func (c *Cache) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	return errors.Join(err, c.kv.Close())
}
