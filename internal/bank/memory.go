// Package bank is an in-memory Transferer holding balances per asset and
// account.
package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

type balanceKey struct {
	asset   capability.Asset
	account capability.Address
}

// Memory applies transfer batches atomically under a single lock. An account
// may be moved by itself or by the authority it delegated to.
type Memory struct {
	mu        sync.RWMutex
	balances  map[balanceKey]uint64
	delegates map[capability.Address]capability.Address
}

func NewMemory() *Memory {
	return &Memory{
		balances:  make(map[balanceKey]uint64),
		delegates: make(map[capability.Address]capability.Address),
	}
}

// Delegate lets authority move funds out of account.
func (m *Memory) Delegate(account, authority capability.Address) {
	m.mu.Lock()
	m.delegates[account] = authority
	m.mu.Unlock()
}

// Mint credits amount of asset to account.
func (m *Memory) Mint(asset capability.Asset, account capability.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{asset, account}
	next, err := calc.Add(m.balances[key], amount)
	if err != nil {
		return fmt.Errorf("mint %s: %w", asset, err)
	}
	m.balances[key] = next
	return nil
}

func (m *Memory) Balance(asset capability.Asset, account capability.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey{asset, account}]
}

func (m *Memory) Transfer(ctx context.Context, legs ...capability.Transfer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrTransferFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make(map[balanceKey]uint64)
	get := func(k balanceKey) uint64 {
		if v, ok := pending[k]; ok {
			return v
		}
		return m.balances[k]
	}

	for i, leg := range legs {
		if leg.Amount == 0 {
			continue
		}
		if leg.Authority != leg.From && m.delegates[leg.From] != leg.Authority {
			return fmt.Errorf("%w: leg %d: %s may not move funds of %s", fault.ErrTransferFailed, i, leg.Authority, leg.From)
		}

		from := balanceKey{leg.Asset, leg.From}
		to := balanceKey{leg.Asset, leg.To}

		debited, err := calc.Sub(get(from), leg.Amount)
		if err != nil {
			return fmt.Errorf("%w: leg %d: insufficient %s balance in %s", fault.ErrTransferFailed, i, leg.Asset, leg.From)
		}
		pending[from] = debited

		credited, err := calc.Add(get(to), leg.Amount)
		if err != nil {
			return fmt.Errorf("%w: leg %d: %v", fault.ErrTransferFailed, i, err)
		}
		pending[to] = credited
	}

	for k, v := range pending {
		m.balances[k] = v
	}
	return nil
}
