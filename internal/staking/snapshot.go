package staking

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
	"github.com/bioneo/stakeledger/internal/ledger"
	"github.com/bioneo/stakeledger/internal/rewards"
)

// Snapshot is the persisted form of a program's state. Wide integers are
// stored as decimal strings.
type Snapshot struct {
	Program      string           `json:"program"`
	Pools        []PoolSnapshot   `json:"pools"`
	Tiers        []Tier           `json:"tiers"`
	Ledgers      []LedgerSnapshot `json:"ledgers"`
	TotalEntries uint64           `json:"total_entries"`
}

type PoolSnapshot struct {
	RewardRate  uint64 `json:"reward_rate"`
	TotalShares uint64 `json:"total_shares"`
	AccPerShare string `json:"acc_per_share"`
	Emitted     string `json:"emitted"`
	LastSync    uint64 `json:"last_sync"`
}

type EntrySnapshot struct {
	Tier         int    `json:"tier"`
	Shares       uint64 `json:"shares"`
	RewardDebt   string `json:"reward_debt"`
	Principal    uint64 `json:"principal"`
	Asset        string `json:"asset"`
	Rarity       uint64 `json:"rarity,omitempty"`
	StartTime    uint64 `json:"start_time"`
	MaturityTime uint64 `json:"maturity_time"`
	Active       bool   `json:"active"`
}

type LedgerSnapshot struct {
	Owner            string          `json:"owner"`
	Entries          []EntrySnapshot `json:"entries"`
	TotalDeposited   uint64          `json:"total_deposited"`
	TotalAccumulated uint64          `json:"total_accumulated"`
	TotalClaimed     uint64          `json:"total_claimed"`
	Referrer         string          `json:"referrer,omitempty"`
	ReferralReward   uint64          `json:"referral_reward"`
	ReferralCount    uint64          `json:"referral_count"`
}

func (p *Program) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Program:      p.cfg.Name,
		Tiers:        append([]Tier(nil), p.tiers...),
		TotalEntries: p.totalEntries,
	}
	for _, pool := range p.registry.Pools() {
		s.Pools = append(s.Pools, PoolSnapshot{
			RewardRate:  pool.RewardRate,
			TotalShares: pool.TotalShares,
			AccPerShare: pool.AccPerShare.Dec(),
			Emitted:     pool.Emitted.Dec(),
			LastSync:    pool.LastSync,
		})
	}

	owners := make([]string, 0, len(p.ledgers))
	for owner := range p.ledgers {
		owners = append(owners, string(owner))
	}
	sort.Strings(owners)
	for _, owner := range owners {
		l := p.ledgers[capability.Address(owner)]
		ls := LedgerSnapshot{
			Owner:            l.Owner,
			TotalDeposited:   l.TotalDeposited,
			TotalAccumulated: l.TotalAccumulated,
			TotalClaimed:     l.TotalClaimed,
			Referrer:         l.Referrer,
			ReferralReward:   l.ReferralReward,
			ReferralCount:    l.ReferralCount,
		}
		for _, e := range l.Entries() {
			ls.Entries = append(ls.Entries, EntrySnapshot{
				Tier:         e.Tier,
				Shares:       e.Shares,
				RewardDebt:   e.RewardDebt.Dec(),
				Principal:    e.Principal,
				Asset:        e.Asset,
				Rarity:       e.Rarity,
				StartTime:    e.StartTime,
				MaturityTime: e.MaturityTime,
				Active:       e.Active,
			})
		}
		s.Ledgers = append(s.Ledgers, ls)
	}
	return s
}

// Restore replaces the program state with s after checking that every pool's
// total shares equals the shares of the active entries referencing it.
func (p *Program) Restore(s Snapshot) error {
	if len(s.Pools) != p.cfg.Tiers || len(s.Tiers) != p.cfg.Tiers {
		return fmt.Errorf("%w: snapshot has %d pools, program has %d tiers", fault.ErrInvalidParams, len(s.Pools), p.cfg.Tiers)
	}

	pools := make([]rewards.Pool, len(s.Pools))
	for i, ps := range s.Pools {
		acc, err := uint256.FromDecimal(ps.AccPerShare)
		if err != nil {
			return fmt.Errorf("%w: pool %d acc_per_share: %v", fault.ErrInvalidParams, i, err)
		}
		emitted, err := uint256.FromDecimal(ps.Emitted)
		if err != nil {
			return fmt.Errorf("%w: pool %d emitted: %v", fault.ErrInvalidParams, i, err)
		}
		pools[i] = rewards.Pool{
			RewardRate:  ps.RewardRate,
			TotalShares: ps.TotalShares,
			AccPerShare: *acc,
			Emitted:     *emitted,
			LastSync:    ps.LastSync,
		}
	}

	shares := make([]uint64, len(pools))
	ledgers := make(map[capability.Address]*ledger.UserLedger, len(s.Ledgers))
	for _, ls := range s.Ledgers {
		entries := make([]ledger.Entry, len(ls.Entries))
		for i, es := range ls.Entries {
			debt, err := uint256.FromDecimal(es.RewardDebt)
			if err != nil {
				return fmt.Errorf("%w: %s entry %d reward_debt: %v", fault.ErrInvalidParams, ls.Owner, i, err)
			}
			if es.Tier < 0 || es.Tier >= len(pools) {
				return fmt.Errorf("%w: %s entry %d tier %d", fault.ErrInvalidTier, ls.Owner, i, es.Tier)
			}
			entries[i] = ledger.Entry{
				Position:     rewards.Position{Shares: es.Shares, RewardDebt: *debt},
				Tier:         es.Tier,
				Principal:    es.Principal,
				Asset:        es.Asset,
				Rarity:       es.Rarity,
				StartTime:    es.StartTime,
				MaturityTime: es.MaturityTime,
				Active:       es.Active,
			}
			if es.Active {
				sum, err := calc.Add(shares[es.Tier], es.Shares)
				if err != nil {
					return err
				}
				shares[es.Tier] = sum
			}
		}
		l, err := ledger.Restore(ls.Owner, p.cfg.Capacity, entries)
		if err != nil {
			return err
		}
		l.TotalDeposited = ls.TotalDeposited
		l.TotalAccumulated = ls.TotalAccumulated
		l.TotalClaimed = ls.TotalClaimed
		l.Referrer = ls.Referrer
		l.ReferralReward = ls.ReferralReward
		l.ReferralCount = ls.ReferralCount
		ledgers[capability.Address(ls.Owner)] = l
	}

	for i := range pools {
		if pools[i].TotalShares != shares[i] {
			return fmt.Errorf("%w: tier %d total shares %d, entries hold %d",
				fault.ErrInconsistentLedger, i, pools[i].TotalShares, shares[i])
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.Restore(pools)
	p.tiers = append([]Tier(nil), s.Tiers...)
	p.ledgers = ledgers
	p.totalEntries = s.TotalEntries
	return nil
}
