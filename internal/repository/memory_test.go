package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemory()

	for i := 0; i < 5; i++ {
		program := "lp-staking"
		if i%2 == 1 {
			program = "ido"
		}
		e, err := j.Append(ctx, NewEntry(program, "stake", "alice", 0, i, uint64(i+1)*100, 0, 1000))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), e.Seq)
		assert.NotEqual(t, uuid.Nil, e.ID)
	}

	all, cursor, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Empty(t, cursor)
	assert.Equal(t, int64(5), all[0].Seq)

	lp, _, err := j.List(ctx, Filter{Program: "lp-staking"})
	require.NoError(t, err)
	assert.Len(t, lp, 3)

	page, cursor, err := j.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "4", cursor)

	next, cursor, err := j.List(ctx, Filter{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, []int64{next[0].Seq, next[1].Seq})
	assert.Equal(t, "2", cursor)

	_, _, err = j.List(ctx, Filter{Cursor: "abc"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestFilterLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, Filter{}.limit())
	assert.Equal(t, MaxLimit, Filter{Limit: 10_000}.limit())
	assert.Equal(t, 7, Filter{Limit: 7}.limit())
}
