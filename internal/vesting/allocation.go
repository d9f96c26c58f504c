// Package vesting releases fixed allocations linearly over whole periods. It
// backs both the IDO sale and the whitelist.
package vesting

import (
	"fmt"
	"strings"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

// Month is the period length used by every release schedule.
const Month = 30 * 24 * 60 * 60

// Rounding selects how the entitlement of a partially vested allocation is
// floored.
type Rounding uint8

const (
	// PerPeriodFloor entitles (total / periods) * elapsed. Up to periods-1
	// units of the total are never released.
	PerPeriodFloor Rounding = iota
	// ProRata entitles total * elapsed / periods and releases the full total
	// once every period has elapsed.
	ProRata
)

func (r Rounding) String() string {
	if r == ProRata {
		return "pro_rata"
	}
	return "per_period"
}

func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_period":
		return PerPeriodFloor, nil
	case "pro_rata":
		return ProRata, nil
	default:
		return 0, fmt.Errorf("%w: unknown rounding %q", fault.ErrInvalidParams, s)
	}
}

type Allocation struct {
	Beneficiary  capability.Address `json:"beneficiary"`
	Total        uint64             `json:"total"`
	Claimed      uint64             `json:"claimed"`
	Start        uint64             `json:"start"`
	PeriodLength uint64             `json:"period_length"`
	PeriodCount  uint64             `json:"period_count"`
}

func (a Allocation) validate() error {
	switch {
	case a.Beneficiary == "":
		return fmt.Errorf("%w: beneficiary is required", fault.ErrInvalidAddress)
	case a.Total == 0:
		return fmt.Errorf("%w: allocation for %s is empty", fault.ErrInvalidAmount, a.Beneficiary)
	case a.PeriodLength == 0 || a.PeriodCount == 0:
		return fmt.Errorf("%w: allocation for %s needs a period length and count", fault.ErrInvalidParams, a.Beneficiary)
	case a.Claimed > a.Total:
		return fmt.Errorf("%w: allocation for %s claimed %d of %d", fault.ErrInvalidParams, a.Beneficiary, a.Claimed, a.Total)
	}
	return nil
}

// ElapsedPeriods returns the whole periods since Start, clamped to
// [0, PeriodCount].
func (a Allocation) ElapsedPeriods(now uint64) uint64 {
	if now <= a.Start || a.PeriodLength == 0 {
		return 0
	}
	return min((now-a.Start)/a.PeriodLength, a.PeriodCount)
}

// Entitled returns the amount vested at now.
func (a Allocation) Entitled(now uint64, r Rounding) (uint64, error) {
	elapsed := a.ElapsedPeriods(now)
	if elapsed == 0 {
		return 0, nil
	}
	if r == ProRata {
		return calc.MulDiv(a.Total, elapsed, a.PeriodCount)
	}
	return calc.Mul(a.Total/a.PeriodCount, elapsed)
}

// Claimable returns the vested amount not yet released.
func (a Allocation) Claimable(now uint64, r Rounding) (uint64, error) {
	entitled, err := a.Entitled(now, r)
	if err != nil {
		return 0, err
	}
	if entitled <= a.Claimed {
		return 0, nil
	}
	return entitled - a.Claimed, nil
}

// Dust is the part of Total the rounding policy never releases.
func (a Allocation) Dust(r Rounding) uint64 {
	if r == ProRata || a.PeriodCount == 0 {
		return 0
	}
	return a.Total % a.PeriodCount
}
