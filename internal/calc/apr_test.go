package calc

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestScaledToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		value    *uint256.Int
		expected decimal.Decimal
	}{
		{
			name:     "one unit",
			value:    uint256.NewInt(Scale),
			expected: decimal.NewFromInt(1),
		},
		{
			name:     "fraction",
			value:    uint256.NewInt(100_000_000_000),
			expected: decimal.RequireFromString("0.1"),
		},
		{
			name:     "zero",
			value:    uint256.NewInt(0),
			expected: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ScaledToDecimal(tt.value)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestCalculateAPR(t *testing.T) {
	tests := []struct {
		name        string
		rewardRate  uint64
		totalShares uint64
		expected    decimal.Decimal
	}{
		{
			name:        "rate equal to stake per year",
			rewardRate:  1,
			totalShares: SecondsPerYear,
			expected:    decimal.NewFromInt(100),
		},
		{
			name:        "empty pool",
			rewardRate:  1000,
			totalShares: 0,
			expected:    decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateAPR(tt.rewardRate, tt.totalShares)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestCalculateStakePreview(t *testing.T) {
	share, reward := CalculateStakePreview(1000, 300, 100, 10)
	assert.True(t, decimal.RequireFromString("0.25").Equal(share))
	assert.True(t, decimal.NewFromInt(2500).Equal(reward))

	share, reward = CalculateStakePreview(1000, 300, 0, 10)
	assert.True(t, share.IsZero())
	assert.True(t, reward.IsZero())
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name    string
		amount  uint64
		min     uint64
		max     uint64
		wantErr bool
	}{
		{"open bounds", 5, 0, 0, false},
		{"inside", 5, 1, 10, false},
		{"below", 0, 1, 10, true},
		{"above", 11, 1, 10, true},
		{"at max", 10, 1, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(tt.amount, tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApplyBps(t *testing.T) {
	v, err := ApplyBps(12_345, 1000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1234), v)

	assert.Error(t, ValidateBps(BasisPoints+1, "referral"))
	assert.Error(t, ValidateAmount(0, "stake"))
}
