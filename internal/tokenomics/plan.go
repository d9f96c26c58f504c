// Package tokenomics describes the fixed token supply and how it is split
// between the staking, vesting and liquidity accounts at genesis.
package tokenomics

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/fault"
)

const (
	Decimals = 9
	// Unit is one whole token in base units.
	Unit        uint64 = 1_000_000_000
	TotalTokens uint64 = 21_000_000
	TotalSupply        = TotalTokens * Unit
)

type Bucket string

const (
	BucketLPStaking  Bucket = "lp_staking"
	BucketNFTStaking Bucket = "nft_staking"
	BucketIDO        Bucket = "ido"
	BucketWhitelist  Bucket = "whitelist"
	BucketLiquidity  Bucket = "liquidity"
)

// Share is one bucket of the distribution, in basis points of the supply.
type Share struct {
	Bucket Bucket `json:"bucket"`
	Bps    uint64 `json:"bps"`
}

// DefaultShares is 20/60/10/5/5.
var DefaultShares = []Share{
	{BucketLPStaking, 2000},
	{BucketNFTStaking, 6000},
	{BucketIDO, 1000},
	{BucketWhitelist, 500},
	{BucketLiquidity, 500},
}

type Allotment struct {
	Bucket Bucket `json:"bucket"`
	Bps    uint64 `json:"bps"`
	Amount uint64 `json:"amount"`
}

type Plan struct {
	Supply     uint64      `json:"supply"`
	Allotments []Allotment `json:"allotments"`
}

// NewPlan splits supply by shares. The shares must add up to 100% and the
// last bucket takes the rounding remainder so the amounts sum to supply.
func NewPlan(supply uint64, shares []Share) (Plan, error) {
	if supply == 0 || len(shares) == 0 {
		return Plan{}, fmt.Errorf("%w: empty distribution", fault.ErrInvalidParams)
	}

	var bps uint64
	seen := make(map[Bucket]struct{}, len(shares))
	for _, s := range shares {
		if _, dup := seen[s.Bucket]; dup {
			return Plan{}, fmt.Errorf("%w: bucket %s listed twice", fault.ErrInvalidParams, s.Bucket)
		}
		seen[s.Bucket] = struct{}{}
		bps += s.Bps
	}
	if bps != calc.BasisPoints {
		return Plan{}, fmt.Errorf("%w: shares sum to %d bps, want %d", fault.ErrInvalidParams, bps, calc.BasisPoints)
	}

	plan := Plan{Supply: supply, Allotments: make([]Allotment, 0, len(shares))}
	var assigned uint64
	for i, s := range shares {
		amount, err := calc.ApplyBps(supply, s.Bps)
		if err != nil {
			return Plan{}, err
		}
		if i == len(shares)-1 {
			amount = supply - assigned
		}
		assigned += amount
		plan.Allotments = append(plan.Allotments, Allotment{Bucket: s.Bucket, Bps: s.Bps, Amount: amount})
	}
	return plan, nil
}

// Default is the 21M token plan.
func Default() Plan {
	plan, err := NewPlan(TotalSupply, DefaultShares)
	if err != nil {
		panic(err)
	}
	return plan
}

// Amount returns the allotment of bucket, zero when the plan has none.
func (p Plan) Amount(b Bucket) uint64 {
	for _, a := range p.Allotments {
		if a.Bucket == b {
			return a.Amount
		}
	}
	return 0
}

// Tokens formats base units as whole tokens with thousands separators.
func Tokens(amount uint64) string {
	whole := humanize.Comma(int64(amount / Unit))
	frac := amount % Unit
	if frac == 0 {
		return whole
	}
	return strings.TrimRight(fmt.Sprintf("%s.%09d", whole, frac), "0")
}

func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supply %s", Tokens(p.Supply))
	for _, a := range p.Allotments {
		fmt.Fprintf(&b, ", %s %s", a.Bucket, Tokens(a.Amount))
	}
	return b.String()
}
