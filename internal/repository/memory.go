package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a Journal kept in process, used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = int64(len(m.entries)) + 1
	e.RecordedAt = m.now().UTC()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *Memory) List(ctx context.Context, f Filter) ([]Entry, string, error) {
	before, err := f.before()
	if err != nil {
		return nil, "", err
	}
	limit := f.limit()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if before != 0 && e.Seq >= before {
			continue
		}
		if (f.Program != "" && e.Program != f.Program) || (f.Actor != "" && e.Actor != f.Actor) {
			continue
		}
		if len(out) == limit {
			return out, cursorOf(out, true), nil
		}
		out = append(out, e)
	}
	return out, "", nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
