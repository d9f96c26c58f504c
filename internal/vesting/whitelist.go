package vesting

import (
	"fmt"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

// WhitelistShares are the basis-point shares of the three whitelist
// beneficiaries.
var WhitelistShares = []uint64{5000, 3000, 2000}

// WhitelistPeriods is the number of monthly releases of a whitelist
// allocation.
const WhitelistPeriods = 12

// WhitelistAllocations splits pool between beneficiaries by WhitelistShares,
// each vesting monthly over WhitelistPeriods from start.
func WhitelistAllocations(pool, start uint64, beneficiaries []capability.Address) ([]Allocation, error) {
	if len(beneficiaries) != len(WhitelistShares) {
		return nil, fmt.Errorf("%w: whitelist needs %d beneficiaries, got %d",
			fault.ErrInvalidParams, len(WhitelistShares), len(beneficiaries))
	}

	allocs := make([]Allocation, len(beneficiaries))
	for i, b := range beneficiaries {
		amount, err := calc.ApplyBps(pool, WhitelistShares[i])
		if err != nil {
			return nil, err
		}
		allocs[i] = Allocation{
			Beneficiary:  b,
			Total:        amount,
			Start:        start,
			PeriodLength: Month,
			PeriodCount:  WhitelistPeriods,
		}
	}
	return allocs, nil
}
