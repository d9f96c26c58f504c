package rewards

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/fault"
)

func stake(t *testing.T, pool *Pool, shares uint64, now uint64) *Position {
	t.Helper()
	require.NoError(t, Sync(pool, now))
	require.NoError(t, pool.AddShares(shares))
	pos := &Position{Shares: shares}
	require.NoError(t, RebaseDebt(pos, pool))
	return pos
}

func TestSingleStakerEarnsFullIncome(t *testing.T) {
	pool := NewPool(1000, 0)
	pos := stake(t, &pool, 1_000_000, 0)

	require.NoError(t, Sync(&pool, 100))
	pending, err := PendingReward(pos, &pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), pending)
}

func TestSyncIsIdempotent(t *testing.T) {
	pool := NewPool(7, 0)
	stake(t, &pool, 3, 0)

	require.NoError(t, Sync(&pool, 10))
	first := pool

	require.NoError(t, Sync(&pool, 10))
	assert.Equal(t, first, pool)
}

func TestSyncEmptyPoolOnlyAdvancesClock(t *testing.T) {
	pool := NewPool(1000, 5)

	require.NoError(t, Sync(&pool, 50))
	assert.Equal(t, uint64(50), pool.LastSync)
	assert.True(t, pool.AccPerShare.IsZero())
	assert.True(t, pool.Emitted.IsZero())
}

func TestSyncIgnoresEarlierTimestamp(t *testing.T) {
	pool := NewPool(1000, 100)
	stake(t, &pool, 10, 100)

	require.NoError(t, Sync(&pool, 90))
	assert.Equal(t, uint64(100), pool.LastSync)
	assert.True(t, pool.AccPerShare.IsZero())
}

func TestAccumulatorIsNonDecreasing(t *testing.T) {
	pool := NewPool(3, 0)
	stake(t, &pool, 7, 0)

	prev := new(uint256.Int)
	for now := uint64(1); now <= 50; now += 7 {
		require.NoError(t, Sync(&pool, now))
		assert.True(t, !pool.AccPerShare.Lt(prev), "accumulator went backwards at %d", now)
		prev = new(uint256.Int).Set(&pool.AccPerShare)
	}
}

func TestTwoStakersSplitIncome(t *testing.T) {
	pool := NewPool(10, 0)
	alice := stake(t, &pool, 100, 0)
	bob := stake(t, &pool, 300, 50)

	require.NoError(t, Sync(&pool, 100))

	a, err := PendingReward(alice, &pool)
	require.NoError(t, err)
	b, err := PendingReward(bob, &pool)
	require.NoError(t, err)

	assert.Equal(t, uint64(625), a)
	assert.Equal(t, uint64(375), b)
	assert.LessOrEqual(t, a+b, pool.Emitted.Uint64())
}

func TestRoundingNeverOverpays(t *testing.T) {
	pool := NewPool(1, 0)
	positions := []*Position{
		stake(t, &pool, 3, 0),
		stake(t, &pool, 7, 0),
		stake(t, &pool, 11, 0),
	}

	require.NoError(t, Sync(&pool, 1000))

	var total uint64
	for _, pos := range positions {
		p, err := PendingReward(pos, &pool)
		require.NoError(t, err)
		total += p
	}
	assert.LessOrEqual(t, total, uint64(1000))
	// each position loses less than one unit to flooring
	assert.Greater(t, total, uint64(1000-len(positions)-1))
}

func TestRebaseDebtZeroesPending(t *testing.T) {
	pool := NewPool(5, 0)
	pos := stake(t, &pool, 10, 0)

	require.NoError(t, Sync(&pool, 20))
	pending, err := PendingReward(pos, &pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), pending)

	require.NoError(t, RebaseDebt(pos, &pool))
	pending, err = PendingReward(pos, &pool)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestPendingRewardDetectsCorruptDebt(t *testing.T) {
	pool := NewPool(5, 0)
	pos := stake(t, &pool, 10, 0)
	pos.RewardDebt.SetUint64(1)

	_, err := PendingReward(pos, &pool)
	assert.ErrorIs(t, err, fault.ErrInconsistentLedger)
}

func TestRemoveSharesUnderflow(t *testing.T) {
	pool := NewPool(5, 0)
	require.NoError(t, pool.AddShares(3))
	assert.ErrorIs(t, pool.RemoveShares(4), fault.ErrUnderflow)
	assert.Equal(t, uint64(3), pool.TotalShares)
}

func TestSyncLargeElapsedStaysExact(t *testing.T) {
	pool := NewPool(1<<40, 0)
	pos := stake(t, &pool, 1, 0)

	require.NoError(t, Sync(&pool, 1<<20))
	pending, err := PendingReward(pos, &pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<60), pending)
	assert.Equal(t, new(uint256.Int).Mul(uint256.NewInt(1<<60), uint256.NewInt(calc.Scale)), &pool.AccPerShare)
}
