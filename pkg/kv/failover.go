package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore serves from primary (usually Redis) and switches to fallback
// (usually memory) when primary reports ErrBackendUnavailable. While on the
// fallback it pings primary every probe interval and switches back once it
// answers. Data written to the fallback is not copied back.
type FailoverStore struct {
	primary       Store
	fallback      Store
	onFallback    atomic.Bool
	probeInterval time.Duration
	logger        LogFunc

	mu      sync.Mutex
	probing bool
	closed  chan struct{}
	wg      sync.WaitGroup
}

func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	if probeInterval <= 0 {
		probeInterval = 5 * time.Second
	}
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		closed:        make(chan struct{}),
	}
}

// NewFailoverStoreWithFallbackActive starts on the fallback and probes primary
// right away, for a primary that failed at startup.
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := NewFailoverStore(primary, fallback, probeInterval, logger)
	fs.onFallback.Store(true)

	fs.mu.Lock()
	fs.startProbingLocked()
	fs.mu.Unlock()
	return fs
}

func (fs *FailoverStore) active() Store {
	if fs.onFallback.Load() {
		return fs.fallback
	}
	return fs.primary
}

func (fs *FailoverStore) demote() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.onFallback.Swap(true) {
		return
	}
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.startProbingLocked()
}

func (fs *FailoverStore) startProbingLocked() {
	if fs.probing {
		return
	}
	select {
	case <-fs.closed:
		return
	default:
	}

	fs.probing = true
	fs.wg.Add(1)
	go fs.probeLoop()
}

func (fs *FailoverStore) probeLoop() {
	defer fs.wg.Done()

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()
			if err != nil {
				continue
			}

			fs.mu.Lock()
			fs.probing = false
			fs.onFallback.Store(false)
			fs.mu.Unlock()
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			return
		}
	}
}

// call runs fn on the active store and retries once on the fallback when the
// primary turns out to be unavailable.
func call[T any](fs *FailoverStore, fn func(Store) (T, error)) (T, error) {
	onFallback := fs.onFallback.Load()
	store := fs.primary
	if onFallback {
		store = fs.fallback
	}

	v, err := fn(store)
	if !onFallback && errors.Is(err, ErrBackendUnavailable) {
		fs.demote()
		return fn(fs.fallback)
	}
	return v, err
}

func exec(fs *FailoverStore, fn func(Store) error) error {
	_, err := call(fs, func(s Store) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	return exec(fs, func(s Store) error { return s.Set(ctx, key, value, ttl...) })
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	return call(fs, func(s Store) ([]byte, error) { return s.Get(ctx, key) })
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return call(fs, func(s Store) (int64, error) { return s.Del(ctx, keys...) })
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return call(fs, func(s Store) (int64, error) { return s.Exists(ctx, keys...) })
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return call(fs, func(s Store) (time.Duration, error) { return s.TTL(ctx, key) })
}

func (fs *FailoverStore) HSet(ctx context.Context, key string, field string, value []byte) error {
	return exec(fs, func(s Store) error { return s.HSet(ctx, key, field, value) })
}

func (fs *FailoverStore) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	return call(fs, func(s Store) ([]byte, error) { return s.HGet(ctx, key, field) })
}

func (fs *FailoverStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	return call(fs, func(s Store) (map[string][]byte, error) { return s.HGetAll(ctx, key) })
}

func (fs *FailoverStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	return call(fs, func(s Store) (int64, error) { return s.LPush(ctx, key, values...) })
}

func (fs *FailoverStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return exec(fs, func(s Store) error { return s.LTrim(ctx, key, start, stop) })
}

func (fs *FailoverStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	return call(fs, func(s Store) ([][]byte, error) { return s.LRange(ctx, key, start, stop) })
}

func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.active().Ping(ctx)
}

// ActiveBackend reports "primary" or "fallback".
func (fs *FailoverStore) ActiveBackend() string {
	if fs.onFallback.Load() {
		return "fallback"
	}
	return "primary"
}

// Close stops probing and closes both stores.
func (fs *FailoverStore) Close() error {
	fs.mu.Lock()
	select {
	case <-fs.closed:
		fs.mu.Unlock()
		return nil
	default:
		close(fs.closed)
	}
	fs.mu.Unlock()
	fs.wg.Wait()

	return errors.Join(fs.primary.Close(), fs.fallback.Close())
}
