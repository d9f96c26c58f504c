package calc

import (
	"github.com/holiman/uint256"
	safemath "github.com/luxfi/math"

	"github.com/bioneo/stakeledger/internal/fault"
)

// Scale carries sub-unit precision through the per-share accumulator.
const Scale uint64 = 1_000_000_000_000

var scale = uint256.NewInt(Scale)

// Income returns rate * elapsed. The product of two uint64 values always fits
// in 256 bits, so this never fails.
func Income(rate, elapsed uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(rate), uint256.NewInt(elapsed))
}

// PerShare returns income * Scale / totalShares, floored. totalShares must be
// non-zero.
func PerShare(income *uint256.Int, totalShares uint64) (*uint256.Int, error) {
	if totalShares == 0 {
		return nil, fault.ErrInvalidAmount
	}
	scaled, overflow := new(uint256.Int).MulOverflow(income, scale)
	if overflow {
		return nil, fault.ErrOverflow
	}
	return scaled.Div(scaled, uint256.NewInt(totalShares)), nil
}

// ShareValue returns shares * perShare / Scale, floored.
func ShareValue(shares uint64, perShare *uint256.Int) (*uint256.Int, error) {
	v, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(shares), perShare)
	if overflow {
		return nil, fault.ErrOverflow
	}
	return v.Div(v, scale), nil
}

// AddAcc adds delta to acc in place.
func AddAcc(acc, delta *uint256.Int) error {
	if _, overflow := acc.AddOverflow(acc, delta); overflow {
		return fault.ErrOverflow
	}
	return nil
}

// SubWide returns a - b and fails instead of wrapping when b > a.
func SubWide(a, b *uint256.Int) (*uint256.Int, error) {
	v, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fault.ErrUnderflow
	}
	return v, nil
}

// Narrow converts v to a token amount.
func Narrow(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, fault.ErrOverflow
	}
	return v.Uint64(), nil
}

func Add(a, b uint64) (uint64, error) {
	v, err := safemath.Add64(a, b)
	if err != nil {
		return 0, fault.ErrOverflow
	}
	return v, nil
}

func Sub(a, b uint64) (uint64, error) {
	v, err := safemath.Sub(a, b)
	if err != nil {
		return 0, fault.ErrUnderflow
	}
	return v, nil
}

// Mul returns a * b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	return Narrow(new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b)))
}

// MulDiv returns a * b / d floored, computed without intermediate overflow.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fault.ErrInvalidAmount
	}
	v := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return Narrow(v.Div(v, uint256.NewInt(d)))
}
