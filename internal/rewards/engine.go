package rewards

import (
	"fmt"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/fault"
)

// Sync advances p to now. A second call with the same now is a no-op, and a
// now earlier than the last sync never moves the pool backwards. An empty pool
// only advances LastSync so income is not spread over zero shares.
func Sync(p *Pool, now uint64) error {
	if now <= p.LastSync {
		return nil
	}
	elapsed := now - p.LastSync

	if p.TotalShares == 0 {
		p.LastSync = now
		return nil
	}

	income := calc.Income(p.RewardRate, elapsed)
	delta, err := calc.PerShare(income, p.TotalShares)
	if err != nil {
		return err
	}

	acc := p.AccPerShare
	if err := calc.AddAcc(&acc, delta); err != nil {
		return err
	}
	emitted := p.Emitted
	if err := calc.AddAcc(&emitted, income); err != nil {
		return err
	}

	p.AccPerShare = acc
	p.Emitted = emitted
	p.LastSync = now
	return nil
}

// PendingReward returns the reward owed to pos since its last rebase. pool must
// already be synced to the instant of interest. A debt above the current
// share value means the ledger is corrupt and is reported as such, never as 0.
func PendingReward(pos *Position, pool *Pool) (uint64, error) {
	value, err := calc.ShareValue(pos.Shares, &pool.AccPerShare)
	if err != nil {
		return 0, err
	}
	pending, err := calc.SubWide(value, &pos.RewardDebt)
	if err != nil {
		return 0, fmt.Errorf("%w: debt %s exceeds share value %s",
			fault.ErrInconsistentLedger, pos.RewardDebt.Dec(), value.Dec())
	}
	return calc.Narrow(pending)
}

// RebaseDebt marks everything accrued so far as attributed to pos.
func RebaseDebt(pos *Position, pool *Pool) error {
	value, err := calc.ShareValue(pos.Shares, &pool.AccPerShare)
	if err != nil {
		return err
	}
	pos.RewardDebt = *value
	return nil
}
