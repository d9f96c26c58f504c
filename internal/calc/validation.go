package calc

import (
	"fmt"

	"github.com/bioneo/stakeledger/internal/fault"
)

// BasisPoints is the denominator for percentage parameters.
const BasisPoints = 10_000

// ValidateAmount checks that an amount is positive.
func ValidateAmount(amount uint64, operation string) error {
	if amount == 0 {
		return fmt.Errorf("%w: %s amount must be positive", fault.ErrInvalidAmount, operation)
	}
	return nil
}

// ValidateRange checks min <= amount <= max. A zero bound is open.
func ValidateRange(amount, min, max uint64) error {
	if min != 0 && amount < min {
		return fmt.Errorf("%w: %d below minimum %d", fault.ErrStakeOutOfRange, amount, min)
	}
	if max != 0 && amount > max {
		return fmt.Errorf("%w: %d above maximum %d", fault.ErrStakeOutOfRange, amount, max)
	}
	return nil
}

// ValidateBps checks a basis point value is within [0, BasisPoints].
func ValidateBps(bps uint64, name string) error {
	if bps > BasisPoints {
		return fmt.Errorf("%w: %s %d exceeds %d bps", fault.ErrInvalidParams, name, bps, BasisPoints)
	}
	return nil
}

// ApplyBps returns amount * bps / BasisPoints, floored.
func ApplyBps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BasisPoints)
}
