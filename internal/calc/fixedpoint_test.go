package calc

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/fault"
)

func TestPerShare(t *testing.T) {
	tests := []struct {
		name        string
		income      *uint256.Int
		totalShares uint64
		expected    uint64
	}{
		{
			name:        "single staker exact",
			income:      uint256.NewInt(100_000),
			totalShares: 1_000_000,
			expected:    100_000_000_000, // 0.1 * 1e12
		},
		{
			name:        "floors remainder",
			income:      uint256.NewInt(1),
			totalShares: 3,
			expected:    333_333_333_333,
		},
		{
			name:        "zero income",
			income:      uint256.NewInt(0),
			totalShares: 10,
			expected:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PerShare(tt.income, tt.totalShares)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Uint64())
		})
	}
}

func TestPerShareRejectsEmptyPool(t *testing.T) {
	_, err := PerShare(uint256.NewInt(5), 0)
	assert.ErrorIs(t, err, fault.ErrInvalidAmount)
}

func TestShareValueRoundTrip(t *testing.T) {
	perShare, err := PerShare(Income(1000, 100), 1_000_000)
	require.NoError(t, err)

	v, err := ShareValue(1_000_000, perShare)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), v.Uint64())
}

func TestShareValueOverflow(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	_, err := ShareValue(math.MaxUint64, huge)
	assert.ErrorIs(t, err, fault.ErrOverflow)
}

func TestIncomeNeverWraps(t *testing.T) {
	v := Income(math.MaxUint64, math.MaxUint64)
	assert.False(t, v.IsUint64())

	_, err := Narrow(v)
	assert.ErrorIs(t, err, fault.ErrOverflow)
}

func TestCheckedCounters(t *testing.T) {
	_, err := Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, fault.ErrOverflow)

	_, err = Sub(1, 2)
	assert.ErrorIs(t, err, fault.ErrUnderflow)

	v, err := Sub(5, 5)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = Mul(math.MaxUint64, 2)
	assert.ErrorIs(t, err, fault.ErrOverflow)
}

func TestMulDiv(t *testing.T) {
	v, err := MulDiv(math.MaxUint64, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/4*3+2), v)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, fault.ErrInvalidAmount)
}

func TestSubWide(t *testing.T) {
	_, err := SubWide(uint256.NewInt(1), uint256.NewInt(2))
	assert.ErrorIs(t, err, fault.ErrUnderflow)

	acc := uint256.NewInt(7)
	require.NoError(t, AddAcc(acc, uint256.NewInt(3)))
	assert.Equal(t, uint64(10), acc.Uint64())

	full := new(uint256.Int).SetAllOne()
	assert.ErrorIs(t, AddAcc(full, uint256.NewInt(1)), fault.ErrOverflow)
}
