// Package staking runs a staking program: a registry of tier pools and the
// bounded ledgers of its users. Every mutating operation syncs the pools it
// touches, works on copies of the state, performs one atomic transfer batch
// and only then commits the copies.
package staking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
	"github.com/bioneo/stakeledger/internal/ledger"
	"github.com/bioneo/stakeledger/internal/rewards"
)

type Config struct {
	Name    string
	Variant Variant

	// Authority may initialize pools.
	Authority capability.Address
	// Account is the program's own address. It signs transfers out of the
	// vault and the reward account, so both must delegate to it.
	Account       capability.Address
	Vault         capability.Address
	RewardAccount capability.Address
	RewardAsset   capability.Asset
	// StakeAsset is the LP token. NFT stakes derive their asset from the mint.
	StakeAsset capability.Asset

	Tiers       int
	Capacity    int
	ReferralBps uint64
	Policy      UnstakePolicy
}

func DefaultConfig(v Variant) Config {
	name := v.String() + "-staking"
	return Config{
		Name:          name,
		Variant:       v,
		Authority:     "admin",
		Account:       capability.Address(name),
		Vault:         capability.Address(name + "-vault"),
		RewardAccount: capability.Address(name + "-rewards"),
		RewardAsset:   "BIO",
		StakeAsset:    "BIO-LP",
		Tiers:         len(DefaultDurations),
		Capacity:      v.DefaultCapacity(),
		ReferralBps:   1000,
		Policy:        SettleOnUnstake,
	}
}

func (c Config) validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: program name is required", fault.ErrInvalidParams)
	case c.Tiers <= 0:
		return fmt.Errorf("%w: tiers must be positive", fault.ErrInvalidParams)
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", fault.ErrInvalidParams)
	case c.Authority == "" || c.Account == "" || c.Vault == "" || c.RewardAccount == "":
		return fmt.Errorf("%w: program addresses are required", fault.ErrInvalidAddress)
	case c.ReferralBps > 10_000:
		return fmt.Errorf("%w: referral bps %d", fault.ErrInvalidParams, c.ReferralBps)
	}
	return nil
}

// TierParams configure one tier pool.
type TierParams struct {
	RewardRate uint64 `json:"reward_rate"`
	Duration   uint64 `json:"duration"`
	MinStake   uint64 `json:"min_stake"`
	MaxStake   uint64 `json:"max_stake"`
}

// Tier is the program-side state of a pool: its parameters and entry count.
type Tier struct {
	TierParams
	Active  bool   `json:"active"`
	Entries uint64 `json:"entries"`
}

type Op string

const (
	OpInitPool    Op = "init_pool"
	OpStake       Op = "stake"
	OpUnstake     Op = "unstake"
	OpClaim       Op = "claim"
	OpSetReferrer Op = "set_referrer"
)

// Event describes a committed operation.
type Event struct {
	Program string
	Op      Op
	Actor   capability.Address
	Tier    int
	Index   int
	Amount  uint64
	Reward  uint64
	At      uint64
}

// Hook observes committed operations. Hooks run after the program lock is
// released and cannot undo the operation.
type Hook func(ctx context.Context, ev Event)

type Program struct {
	cfg      Config
	transfer capability.Transferer
	clock    capability.Clock
	access   capability.AccessControl
	logger   *zap.SugaredLogger

	mu           sync.Mutex
	registry     *rewards.Registry
	tiers        []Tier
	ledgers      map[capability.Address]*ledger.UserLedger
	totalEntries uint64

	hooksMu sync.RWMutex
	hooks   []Hook
}

func New(cfg Config, transfer capability.Transferer, clock capability.Clock, access capability.AccessControl, logger *zap.SugaredLogger) (*Program, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Program{
		cfg:      cfg,
		transfer: transfer,
		clock:    clock,
		access:   access,
		logger:   logger.With("program", cfg.Name),
		registry: rewards.NewRegistry(cfg.Tiers),
		tiers:    make([]Tier, cfg.Tiers),
		ledgers:  make(map[capability.Address]*ledger.UserLedger),
	}, nil
}

func (p *Program) Name() string {
	return p.cfg.Name
}

func (p *Program) Config() Config {
	return p.cfg
}

// OnCommit registers a hook for committed operations.
func (p *Program) OnCommit(h Hook) {
	p.hooksMu.Lock()
	p.hooks = append(p.hooks, h)
	p.hooksMu.Unlock()
}

func (p *Program) emit(ctx context.Context, ev Event) {
	ev.Program = p.cfg.Name
	p.hooksMu.RLock()
	hooks := append([]Hook(nil), p.hooks...)
	p.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, ev)
	}
}

func (p *Program) now(ctx context.Context) (uint64, error) {
	now, err := p.clock.Now(ctx)
	if err != nil {
		if errors.Is(err, fault.ErrClockUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", fault.ErrClockUnavailable, err)
	}
	return now, nil
}

func (p *Program) authorize(signer, required capability.Address) error {
	if !p.access.Authorized(signer, required) {
		return fmt.Errorf("%w: %q may not act for %q", fault.ErrUnauthorized, signer, required)
	}
	return nil
}

func (p *Program) send(ctx context.Context, legs []capability.Transfer) error {
	if len(legs) == 0 {
		return nil
	}
	if err := p.transfer.Transfer(ctx, legs...); err != nil {
		if errors.Is(err, fault.ErrTransferFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", fault.ErrTransferFailed, err)
	}
	return nil
}

// txn holds copies of everything one operation may touch.
type txn struct {
	p            *Program
	registry     *rewards.Registry
	tiers        []Tier
	ledgers      map[capability.Address]*ledger.UserLedger
	totalEntries uint64
}

func (p *Program) begin() *txn {
	tiers := make([]Tier, len(p.tiers))
	copy(tiers, p.tiers)
	return &txn{
		p:            p,
		registry:     p.registry.Clone(),
		tiers:        tiers,
		ledgers:      make(map[capability.Address]*ledger.UserLedger),
		totalEntries: p.totalEntries,
	}
}

// ledger returns the txn copy of owner's ledger, creating an empty one if
// create is set.
func (t *txn) ledger(owner capability.Address, create bool) *ledger.UserLedger {
	if l, ok := t.ledgers[owner]; ok {
		return l
	}
	var l *ledger.UserLedger
	if cur, ok := t.p.ledgers[owner]; ok {
		l = cur.Clone()
	} else if create {
		l = ledger.New(string(owner), t.p.cfg.Capacity)
	} else {
		return nil
	}
	t.ledgers[owner] = l
	return l
}

func (t *txn) tier(index int) (*Tier, *rewards.Pool, error) {
	pool, err := t.registry.Pool(index)
	if err != nil {
		return nil, nil, err
	}
	return &t.tiers[index], pool, nil
}

func (t *txn) commit() {
	p := t.p
	p.registry = t.registry
	p.tiers = t.tiers
	p.totalEntries = t.totalEntries
	for owner, l := range t.ledgers {
		p.ledgers[owner] = l
	}
}
