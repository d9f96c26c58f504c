package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bioneo/stakeledger/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.Mutex
	strings     map[string][]byte
	hashes      map[string]map[string][]byte
	lists       map[string][][]byte
	expirations map[string]time.Time
	now         func() time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a store. A positive janitorInterval evicts expired keys in the
// background; expired keys are invisible to reads either way.
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		hashes:          make(map[string]map[string][]byte),
		lists:           make(map[string][][]byte),
		expirations:     make(map[string]time.Time),
		now:             time.Now,
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}
	return s
}

func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key := range s.expirations {
				s.expireLocked(key)
			}
			s.mu.Unlock()
		case <-s.janitorStop:
			return
		}
	}
}

// expireLocked drops key if its TTL has passed and reports whether it did.
func (s *Store) expireLocked(key string) bool {
	expiry, ok := s.expirations[key]
	if !ok || s.now().Before(expiry) {
		return false
	}
	s.deleteLocked(key)
	return true
}

func (s *Store) deleteLocked(key string) bool {
	_, str := s.strings[key]
	_, hash := s.hashes[key]
	_, list := s.lists[key]
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.lists, key)
	delete(s.expirations, key)
	return str || hash || list
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
	s.strings[key] = append([]byte(nil), value...)
	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = s.now().Add(ttl[0])
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	if _, ok := s.hashes[key]; ok {
		return nil, kv.ErrWrongType
	}
	if _, ok := s.lists[key]; ok {
		return nil, kv.ErrWrongType
	}
	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if s.expireLocked(key) {
			continue
		}
		if s.deleteLocked(key) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if s.existsLocked(key) {
			n++
		}
	}
	return n, nil
}

func (s *Store) existsLocked(key string) bool {
	if s.expireLocked(key) {
		return false
	}
	_, str := s.strings[key]
	_, hash := s.hashes[key]
	_, list := s.lists[key]
	return str || hash || list
}

// TTL returns -1 for a key without expiry, like Redis.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.existsLocked(key) {
		return 0, kv.ErrNotFound
	}
	expiry, ok := s.expirations[key]
	if !ok {
		return -1, nil
	}
	return expiry.Sub(s.now()), nil
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	if _, ok := s.strings[key]; ok {
		return kv.ErrWrongType
	}
	if _, ok := s.lists[key]; ok {
		return kv.ErrWrongType
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	h[field] = append([]byte(nil), value...)
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	value, ok := s.hashes[key][field]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	h, ok := s.hashes[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make(map[string][]byte, len(h))
	for field, value := range h {
		out[field] = append([]byte(nil), value...)
	}
	return out, nil
}

// List operations

// LPush prepends values one by one, so the last value ends up at the head.
func (s *Store) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	if _, ok := s.strings[key]; ok {
		return 0, kv.ErrWrongType
	}
	if _, ok := s.hashes[key]; ok {
		return 0, kv.ErrWrongType
	}

	list := s.lists[key]
	head := make([][]byte, 0, len(values)+len(list))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, append([]byte(nil), values[i]...))
	}
	s.lists[key] = append(head, list...)
	return int64(len(s.lists[key])), nil
}

func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	list, ok := s.lists[key]
	if !ok {
		return nil
	}
	from, to, empty := bounds(int64(len(list)), start, stop)
	if empty {
		delete(s.lists, key)
		delete(s.expirations, key)
		return nil
	}
	s.lists[key] = append([][]byte(nil), list[from:to+1]...)
	return nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(key)
	list, ok := s.lists[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	from, to, empty := bounds(int64(len(list)), start, stop)
	if empty {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, to-from+1)
	for _, v := range list[from : to+1] {
		out = append(out, append([]byte(nil), v...))
	}
	return out, nil
}

// bounds resolves Redis style inclusive indexes, negative ones counting from
// the tail.
func bounds(n, start, stop int64) (from, to int64, empty bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, true
	}
	return start, stop, false
}

// Ping always returns nil for the in-memory store (always available)
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background janitor and drops all data.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
		}
		<-s.janitorDone

		s.mu.Lock()
		defer s.mu.Unlock()
		s.strings = make(map[string][]byte)
		s.hashes = make(map[string]map[string][]byte)
		s.lists = make(map[string][][]byte)
		s.expirations = make(map[string]time.Time)
	})
	return nil
}
