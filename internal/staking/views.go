package staking

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
	"github.com/bioneo/stakeledger/internal/ledger"
	"github.com/bioneo/stakeledger/internal/rewards"
)

type EntryView struct {
	Index        int    `json:"index"`
	Tier         int    `json:"tier"`
	Shares       uint64 `json:"shares"`
	Principal    uint64 `json:"principal"`
	Asset        string `json:"asset"`
	Rarity       uint64 `json:"rarity,omitempty"`
	RewardDebt   string `json:"reward_debt"`
	StartTime    uint64 `json:"start_time"`
	MaturityTime uint64 `json:"maturity_time"`
	Matured      bool   `json:"matured"`
	Active       bool   `json:"active"`
	Pending      uint64 `json:"pending"`
}

type LedgerView struct {
	Owner            string      `json:"owner"`
	Capacity         int         `json:"capacity"`
	Used             int         `json:"used"`
	ActiveCount      int         `json:"active_count"`
	TotalDeposited   uint64      `json:"total_deposited"`
	TotalAccumulated uint64      `json:"total_accumulated"`
	TotalClaimed     uint64      `json:"total_claimed"`
	TotalRewardDebt  string      `json:"total_reward_debt"`
	Referrer         string      `json:"referrer,omitempty"`
	ReferralReward   uint64      `json:"referral_reward"`
	ReferralCount    uint64      `json:"referral_count"`
	Pending          uint64      `json:"pending"`
	Entries          []EntryView `json:"entries"`
	At               uint64      `json:"at"`
}

type PoolView struct {
	Tier        int             `json:"tier"`
	Active      bool            `json:"active"`
	RewardRate  uint64          `json:"reward_rate"`
	Duration    uint64          `json:"duration"`
	MinStake    uint64          `json:"min_stake"`
	MaxStake    uint64          `json:"max_stake"`
	TotalShares uint64          `json:"total_shares"`
	Entries     uint64          `json:"entries"`
	AccPerShare decimal.Decimal `json:"acc_per_share"`
	Emitted     string          `json:"emitted"`
	LastSync    uint64          `json:"last_sync"`
	APR         decimal.Decimal `json:"apr"`
}

// Pending returns owner's ledger with the reward each active entry would
// receive if claimed now. Pools are synced on a copy; nothing is mutated.
func (p *Program) Pending(ctx context.Context, owner capability.Address) (LedgerView, error) {
	const op = "pending"

	p.mu.Lock()
	defer p.mu.Unlock()

	now, err := p.now(ctx)
	if err != nil {
		return LedgerView{}, fault.New(op, err)
	}
	l, ok := p.ledgers[owner]
	if !ok {
		return LedgerView{Owner: string(owner), Capacity: p.cfg.Capacity, Entries: []EntryView{}, At: now}, nil
	}

	registry := p.registry.Clone()
	if err := registry.SyncTiers(now, l.Tiers()); err != nil {
		return LedgerView{}, fault.New(op, err)
	}
	view, err := ledgerView(l, registry, now)
	if err != nil {
		return LedgerView{}, fault.New(op, err)
	}
	return view, nil
}

func ledgerView(l *ledger.UserLedger, registry *rewards.Registry, now uint64) (LedgerView, error) {
	view := LedgerView{
		Owner:            l.Owner,
		Capacity:         l.Capacity(),
		Used:             l.Used(),
		ActiveCount:      l.ActiveCount,
		TotalDeposited:   l.TotalDeposited,
		TotalAccumulated: l.TotalAccumulated,
		TotalClaimed:     l.TotalClaimed,
		TotalRewardDebt:  l.TotalRewardDebt.Dec(),
		Referrer:         l.Referrer,
		ReferralReward:   l.ReferralReward,
		ReferralCount:    l.ReferralCount,
		Entries:          []EntryView{},
		At:               now,
	}

	for i, e := range l.Entries() {
		ev := EntryView{
			Index:        i,
			Tier:         e.Tier,
			Shares:       e.Shares,
			Principal:    e.Principal,
			Asset:        e.Asset,
			Rarity:       e.Rarity,
			RewardDebt:   e.RewardDebt.Dec(),
			StartTime:    e.StartTime,
			MaturityTime: e.MaturityTime,
			Matured:      e.Matured(now),
			Active:       e.Active,
		}
		if e.Active {
			pool, err := registry.Pool(e.Tier)
			if err != nil {
				return LedgerView{}, err
			}
			pending, err := rewards.PendingReward(&e.Position, pool)
			if err != nil {
				return LedgerView{}, err
			}
			ev.Pending = pending
			if view.Pending, err = calc.Add(view.Pending, pending); err != nil {
				return LedgerView{}, err
			}
		}
		view.Entries = append(view.Entries, ev)
	}
	return view, nil
}

// Pools returns every tier synced to now, computed on a copy.
func (p *Program) Pools(ctx context.Context) ([]PoolView, error) {
	const op = "pools"

	p.mu.Lock()
	defer p.mu.Unlock()

	now, err := p.now(ctx)
	if err != nil {
		return nil, fault.New(op, err)
	}
	registry := p.registry.Clone()
	if err := registry.SyncAll(now); err != nil {
		return nil, fault.New(op, err)
	}

	pools := registry.Pools()
	out := make([]PoolView, len(pools))
	for i := range pools {
		pool := &pools[i]
		t := p.tiers[i]
		out[i] = PoolView{
			Tier:        i,
			Active:      t.Active,
			RewardRate:  pool.RewardRate,
			Duration:    t.Duration,
			MinStake:    t.MinStake,
			MaxStake:    t.MaxStake,
			TotalShares: pool.TotalShares,
			Entries:     t.Entries,
			AccPerShare: calc.ScaledToDecimal(&pool.AccPerShare),
			Emitted:     pool.Emitted.Dec(),
			LastSync:    pool.LastSync,
			APR:         calc.CalculateAPR(pool.RewardRate, pool.TotalShares),
		}
	}
	return out, nil
}

// TotalEntries is the number of active entries across all users.
func (p *Program) TotalEntries() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalEntries
}
