// Package rewards implements the accumulated-reward-per-share accounting used
// by every staking variant: per-tier pools, the registry that owns them, and
// the pure functions that sync a pool and settle a position against it.
package rewards

import (
	"github.com/holiman/uint256"

	"github.com/bioneo/stakeledger/internal/calc"
)

// Pool is the accumulator of a single tier. It is owned by a Registry and
// only mutated through Sync and the share adjustments below.
type Pool struct {
	RewardRate  uint64
	TotalShares uint64
	AccPerShare uint256.Int
	LastSync    uint64

	// Emitted is the income folded into AccPerShare so far. Claims against
	// the pool can never exceed it.
	Emitted uint256.Int
}

// Position is the part of a ledger entry the engine reads and writes.
type Position struct {
	Shares     uint64
	RewardDebt uint256.Int
}

func NewPool(rate, now uint64) Pool {
	return Pool{RewardRate: rate, LastSync: now}
}

func (p *Pool) AddShares(shares uint64) error {
	total, err := calc.Add(p.TotalShares, shares)
	if err != nil {
		return err
	}
	p.TotalShares = total
	return nil
}

func (p *Pool) RemoveShares(shares uint64) error {
	total, err := calc.Sub(p.TotalShares, shares)
	if err != nil {
		return err
	}
	p.TotalShares = total
	return nil
}
