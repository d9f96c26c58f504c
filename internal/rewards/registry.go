package rewards

import (
	"fmt"
	"sort"

	"github.com/bioneo/stakeledger/internal/fault"
)

// Registry owns the fixed set of tier pools of one staking program.
type Registry struct {
	pools []Pool
}

func NewRegistry(tiers int) *Registry {
	return &Registry{pools: make([]Pool, tiers)}
}

func (r *Registry) Len() int {
	return len(r.pools)
}

// Pool returns the pool of tier for in-place mutation.
func (r *Registry) Pool(tier int) (*Pool, error) {
	if tier < 0 || tier >= len(r.pools) {
		return nil, fmt.Errorf("%w: %d (have %d tiers)", fault.ErrInvalidTier, tier, len(r.pools))
	}
	return &r.pools[tier], nil
}

// Pools returns a copy of every pool.
func (r *Registry) Pools() []Pool {
	out := make([]Pool, len(r.pools))
	copy(out, r.pools)
	return out
}

// SyncAll advances every pool to now. The only possible failure is an
// accumulator overflow, and in that case no pool is modified.
func (r *Registry) SyncAll(now uint64) error {
	next := r.Clone()
	for i := range next.pools {
		if err := Sync(&next.pools[i], now); err != nil {
			return fmt.Errorf("tier %d: %w", i, err)
		}
	}
	r.pools = next.pools
	return nil
}

// SyncTiers advances each distinct tier in tiers exactly once, so every entry
// touched by one operation sees the same accumulator.
func (r *Registry) SyncTiers(now uint64, tiers []int) error {
	seen := make(map[int]struct{}, len(tiers))
	distinct := make([]int, 0, len(tiers))
	for _, t := range tiers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}
	sort.Ints(distinct)

	next := r.Clone()
	for _, t := range distinct {
		p, err := next.Pool(t)
		if err != nil {
			return err
		}
		if err := Sync(p, now); err != nil {
			return fmt.Errorf("tier %d: %w", t, err)
		}
	}
	r.pools = next.pools
	return nil
}

// Clone returns a deep copy. Pools hold no pointers, so copying the slice is
// enough.
func (r *Registry) Clone() *Registry {
	return &Registry{pools: r.Pools()}
}

// Restore replaces the pools, used when loading a snapshot.
func (r *Registry) Restore(pools []Pool) {
	r.pools = make([]Pool, len(pools))
	copy(r.pools, pools)
}
