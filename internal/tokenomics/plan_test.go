package tokenomics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/fault"
)

func TestDefaultPlan(t *testing.T) {
	plan := Default()

	assert.Equal(t, uint64(21_000_000_000_000_000), plan.Supply)
	assert.Equal(t, 4_200_000*Unit, plan.Amount(BucketLPStaking))
	assert.Equal(t, 12_600_000*Unit, plan.Amount(BucketNFTStaking))
	assert.Equal(t, 2_100_000*Unit, plan.Amount(BucketIDO))
	assert.Equal(t, 1_050_000*Unit, plan.Amount(BucketWhitelist))
	assert.Equal(t, 1_050_000*Unit, plan.Amount(BucketLiquidity))
	assert.Zero(t, plan.Amount("team"))

	var sum uint64
	for _, a := range plan.Allotments {
		sum += a.Amount
	}
	assert.Equal(t, plan.Supply, sum)
}

func TestPlanRemainderGoesToLastBucket(t *testing.T) {
	plan, err := NewPlan(10_001, []Share{{"a", 3333}, {"b", 3333}, {"c", 3334}})
	require.NoError(t, err)

	assert.Equal(t, uint64(3333), plan.Amount("a"))
	assert.Equal(t, uint64(3333), plan.Amount("b"))
	assert.Equal(t, uint64(3335), plan.Amount("c"))
}

func TestNewPlanValidation(t *testing.T) {
	tests := []struct {
		name   string
		supply uint64
		shares []Share
	}{
		{"zero supply", 0, DefaultShares},
		{"no shares", 100, nil},
		{"short", 100, []Share{{"a", 5000}}},
		{"over", 100, []Share{{"a", 5000}, {"b", 5001}}},
		{"duplicate", 100, []Share{{"a", 5000}, {"a", 5000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.supply, tt.shares)
			assert.ErrorIs(t, err, fault.ErrInvalidParams)
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, "21,000,000", Tokens(TotalSupply))
	assert.Equal(t, "1.5", Tokens(Unit+Unit/2))
	assert.Equal(t, "0.000000001", Tokens(1))
	assert.Contains(t, Default().String(), "nft_staking 12,600,000")
}
