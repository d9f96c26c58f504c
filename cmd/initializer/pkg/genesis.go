package pkg

import (
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/tokenomics"
	"github.com/bioneo/stakeledger/internal/vesting"
)

const (
	// EmissionPeriod is how long a staking bucket lasts at the default rates.
	EmissionPeriod uint64 = 4 * 365 * 24 * 60 * 60
	SaleWindow     uint64 = 14 * 24 * 60 * 60
	SaleShares     uint64 = 10_000
	// SalePrice is in payment base units per share.
	SalePrice uint64 = 1_000_000
)

// DefaultGenesis derives pool rates and the IDO sale from plan, with every
// schedule starting at start.
func DefaultGenesis(plan tokenomics.Plan, start uint64) GenesisConfig {
	return GenesisConfig{
		Staking: []ProgramGenesis{
			defaultProgram(staking.VariantLP, plan.Amount(tokenomics.BucketLPStaking)),
			defaultProgram(staking.VariantNFT, plan.Amount(tokenomics.BucketNFTStaking)),
		},
		IDO: vesting.SaleParams{
			Start:         start,
			End:           start + SaleWindow,
			PricePerShare: SalePrice,
			TotalShares:   SaleShares,
			TokenAmount:   plan.Amount(tokenomics.BucketIDO),
			PeriodLength:  vesting.Month,
			PeriodCount:   vesting.WhitelistPeriods,
		},
		Whitelist: WhitelistGenesis{Start: start},
		Rounding:  vesting.PerPeriodFloor.String(),
	}
}

// defaultProgram spreads bucket evenly over the tiers for EmissionPeriod.
func defaultProgram(v staking.Variant, bucket uint64) ProgramGenesis {
	tiers := uint64(len(staking.DefaultDurations))
	rate := bucket / tiers / EmissionPeriod

	p := ProgramGenesis{Variant: v.String()}
	for i, d := range staking.DefaultDurations {
		p.Pools = append(p.Pools, PoolGenesis{Tier: i, RewardRate: rate, Duration: d})
	}
	return p
}
