// Package repository stores the operation journal: one row per committed
// staking or vesting operation.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Migrations holds the goose migrations of the journal schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations.
const MigrationsDir = "migrations"

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidCursor = errors.New("invalid cursor")

type Entry struct {
	ID      uuid.UUID `json:"id"`
	Seq     int64     `json:"seq"`
	Program string    `json:"program"`
	Op      string    `json:"op"`
	Actor   string    `json:"actor"`
	// Tier and Index are -1 when the operation has none.
	Tier       int       `json:"tier"`
	Index      int       `json:"index"`
	Amount     uint64    `json:"amount"`
	Reward     uint64    `json:"reward"`
	At         uint64    `json:"at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Filter selects journal entries, newest first. Empty fields match all.
type Filter struct {
	Program string
	Actor   string
	Limit   int
	Cursor  string
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

// before decodes the cursor: only entries with a smaller Seq are returned.
func (f Filter) before() (int64, error) {
	if f.Cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(f.Cursor, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, f.Cursor)
	}
	return seq, nil
}

func cursorOf(entries []Entry, hasMore bool) string {
	if !hasMore || len(entries) == 0 {
		return ""
	}
	return strconv.FormatInt(entries[len(entries)-1].Seq, 10)
}

// Journal is implemented by the Postgres and in-memory stores.
type Journal interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, string, error)
	Ping(ctx context.Context) error
}

// NewEntry fills in a fresh ID.
func NewEntry(program, op, actor string, tier, index int, amount, reward, at uint64) Entry {
	return Entry{
		ID:      uuid.New(),
		Program: program,
		Op:      op,
		Actor:   actor,
		Tier:    tier,
		Index:   index,
		Amount:  amount,
		Reward:  reward,
		At:      at,
	}
}
