// Package ledger holds per-user stake records in a bounded, slot-reused array.
package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/fault"
)

// UserLedger is a fixed-capacity array of entries plus aggregate counters.
// The counters are kept for observability; payouts are always computed from
// the entries themselves.
type UserLedger struct {
	Owner   string
	entries []Entry
	// used is the number of slots ever allocated, the high-water mark of
	// entries.
	used int

	TotalDeposited   uint64
	TotalAccumulated uint64
	TotalClaimed     uint64
	TotalRewardDebt  uint256.Int
	ActiveCount      int

	Referrer       string
	ReferralReward uint64
	ReferralCount  uint64
}

func New(owner string, capacity int) *UserLedger {
	return &UserLedger{Owner: owner, entries: make([]Entry, capacity)}
}

func (l *UserLedger) Capacity() int {
	return len(l.entries)
}

func (l *UserLedger) Used() int {
	return l.used
}

// Allocate stores e in the lowest free slot and returns its index. Closed
// slots are reused before the high-water mark grows.
func (l *UserLedger) Allocate(e Entry) (int, error) {
	slot := -1
	for i := 0; i < l.used; i++ {
		if !l.entries[i].Active {
			slot = i
			break
		}
	}
	if slot < 0 {
		if l.used >= len(l.entries) {
			return 0, fmt.Errorf("%w: capacity %d", fault.ErrLedgerFull, len(l.entries))
		}
		slot = l.used
		l.used++
	}

	deposited, err := calc.Add(l.TotalDeposited, e.Principal)
	if err != nil {
		return 0, err
	}

	e.Active = true
	l.entries[slot] = e
	l.TotalDeposited = deposited
	l.refresh()
	return slot, nil
}

// Entry returns the slot at index for in-place mutation.
func (l *UserLedger) Entry(index int) (*Entry, error) {
	if index < 0 || index >= l.used {
		return nil, fmt.Errorf("%w: %d (used %d)", fault.ErrInvalidIndex, index, l.used)
	}
	return &l.entries[index], nil
}

// ActiveEntry is Entry restricted to active slots.
func (l *UserLedger) ActiveEntry(index int) (*Entry, error) {
	e, err := l.Entry(index)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, fmt.Errorf("%w: index %d", fault.ErrRecordNotActive, index)
	}
	return e, nil
}

// Close marks the slot inactive and returns its principal to the deposit
// counter.
func (l *UserLedger) Close(index int) error {
	e, err := l.ActiveEntry(index)
	if err != nil {
		return err
	}
	deposited, err := calc.Sub(l.TotalDeposited, e.Principal)
	if err != nil {
		return err
	}
	e.Active = false
	l.TotalDeposited = deposited
	l.refresh()
	return nil
}

// ActiveIndexes lists the indexes of active slots in ascending order.
func (l *UserLedger) ActiveIndexes() []int {
	var out []int
	for i := 0; i < l.used; i++ {
		if l.entries[i].Active {
			out = append(out, i)
		}
	}
	return out
}

// Tiers lists the tier of every active entry, duplicates included.
func (l *UserLedger) Tiers() []int {
	var out []int
	for i := 0; i < l.used; i++ {
		if l.entries[i].Active {
			out = append(out, l.entries[i].Tier)
		}
	}
	return out
}

// Entries returns a copy of the allocated slots.
func (l *UserLedger) Entries() []Entry {
	out := make([]Entry, l.used)
	copy(out, l.entries[:l.used])
	return out
}

// CreditReward records a settled reward payout.
func (l *UserLedger) CreditReward(amount uint64) error {
	accumulated, err := calc.Add(l.TotalAccumulated, amount)
	if err != nil {
		return err
	}
	claimed, err := calc.Add(l.TotalClaimed, amount)
	if err != nil {
		return err
	}
	l.TotalAccumulated = accumulated
	l.TotalClaimed = claimed
	return nil
}

func (l *UserLedger) CreditReferral(amount uint64) error {
	reward, err := calc.Add(l.ReferralReward, amount)
	if err != nil {
		return err
	}
	l.ReferralReward = reward
	return nil
}

// Refresh recomputes the derived counters after entries were mutated in
// place.
func (l *UserLedger) Refresh() {
	l.refresh()
}

func (l *UserLedger) refresh() {
	var debt uint256.Int
	active := 0
	for i := 0; i < l.used; i++ {
		e := &l.entries[i]
		if !e.Active {
			continue
		}
		active++
		// observability only, saturates
		if _, overflow := debt.AddOverflow(&debt, &e.RewardDebt); overflow {
			debt.SetAllOne()
		}
	}
	l.TotalRewardDebt = debt
	l.ActiveCount = active
}

// Clone returns a deep copy.
func (l *UserLedger) Clone() *UserLedger {
	c := *l
	c.entries = make([]Entry, len(l.entries))
	copy(c.entries, l.entries)
	return &c
}

// Restore rebuilds a ledger from persisted slots.
func Restore(owner string, capacity int, entries []Entry) (*UserLedger, error) {
	if len(entries) > capacity {
		return nil, fmt.Errorf("%w: %d entries exceed capacity %d", fault.ErrInvalidParams, len(entries), capacity)
	}
	l := New(owner, capacity)
	copy(l.entries, entries)
	l.used = len(entries)
	l.refresh()
	return l, nil
}
