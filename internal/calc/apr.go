package calc

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const SecondsPerYear = 365 * 24 * 60 * 60

// ScaledToDecimal converts a Scale-denominated accumulator to a decimal.
func ScaledToDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -12)
}

// CalculateAPR estimates the yearly percentage return of a pool, assuming the
// reward token and the staked shares are valued 1:1.
func CalculateAPR(rewardRate, totalShares uint64) decimal.Decimal {
	if totalShares == 0 {
		return decimal.Zero
	}

	yearly := decimal.NewFromInt(SecondsPerYear).Mul(decimalFromUint(rewardRate))
	return yearly.Div(decimalFromUint(totalShares)).Mul(decimal.NewFromInt(100))
}

// CalculateStakePreview estimates the reward a new stake of the given shares
// earns over seconds if nobody else joins or leaves.
func CalculateStakePreview(rewardRate, totalShares, shares, seconds uint64) (poolShare, expectedReward decimal.Decimal) {
	if shares == 0 {
		return decimal.Zero, decimal.Zero
	}

	newTotal := decimalFromUint(totalShares).Add(decimalFromUint(shares))
	poolShare = decimalFromUint(shares).Div(newTotal)
	income := decimalFromUint(rewardRate).Mul(decimalFromUint(seconds))
	return poolShare, income.Mul(poolShare).Floor()
}

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
