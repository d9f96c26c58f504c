package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/fault"
)

func TestSignerMatch(t *testing.T) {
	ac := SignerMatch{}
	assert.True(t, ac.Authorized("alice", "alice"))
	assert.False(t, ac.Authorized("bob", "alice"))
	assert.False(t, ac.Authorized("", ""))
}

func TestManualClock(t *testing.T) {
	ctx := context.Background()
	c := NewManualClock(10)

	now, err := c.Now(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), now)

	c.Advance(5)
	now, _ = c.Now(ctx)
	assert.Equal(t, uint64(15), now)

	c.Fail(true)
	_, err = c.Now(ctx)
	assert.ErrorIs(t, err, fault.ErrClockUnavailable)
}

func TestSystemClockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	now, err := SystemClock{}.Now(ctx)
	require.NoError(t, err)
	assert.Greater(t, now, uint64(0))

	cancel()
	_, err = SystemClock{}.Now(ctx)
	assert.ErrorIs(t, err, fault.ErrClockUnavailable)
}
