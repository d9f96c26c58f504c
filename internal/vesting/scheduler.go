package vesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

type Config struct {
	Name string
	// Authority may register allocations.
	Authority capability.Address
	// Account signs releases out of Treasury.
	Account  capability.Address
	Treasury capability.Address
	Asset    capability.Asset
	Rounding Rounding
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: scheduler name is required", fault.ErrInvalidParams)
	}
	if c.Authority == "" || c.Account == "" || c.Treasury == "" {
		return fmt.Errorf("%w: scheduler addresses are required", fault.ErrInvalidAddress)
	}
	return nil
}

// Release describes a committed vesting release.
type Release struct {
	Program     string
	Beneficiary capability.Address
	Amount      uint64
	Claimed     uint64
	At          uint64
}

type Hook func(ctx context.Context, r Release)

// Scheduler owns the allocations of one vesting program.
type Scheduler struct {
	cfg      Config
	transfer capability.Transferer
	clock    capability.Clock
	access   capability.AccessControl
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	allocations map[capability.Address]Allocation

	hooksMu sync.RWMutex
	hooks   []Hook
}

func NewScheduler(cfg Config, transfer capability.Transferer, clock capability.Clock, access capability.AccessControl, logger *zap.SugaredLogger) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		cfg:         cfg,
		transfer:    transfer,
		clock:       clock,
		access:      access,
		logger:      logger.With("program", cfg.Name),
		allocations: make(map[capability.Address]Allocation),
	}, nil
}

func (s *Scheduler) Name() string {
	return s.cfg.Name
}

func (s *Scheduler) Rounding() Rounding {
	return s.cfg.Rounding
}

func (s *Scheduler) OnRelease(h Hook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, h)
	s.hooksMu.Unlock()
}

// InitVesting registers allocations. Either all of them are added or none.
func (s *Scheduler) InitVesting(ctx context.Context, signer capability.Address, allocs ...Allocation) error {
	const op = "init_vesting"

	if !s.access.Authorized(signer, s.cfg.Authority) {
		return fault.New(op, fmt.Errorf("%w: %q is not the vesting authority", fault.ErrUnauthorized, signer))
	}
	if len(allocs) == 0 {
		return fault.New(op, fmt.Errorf("%w: no allocations", fault.ErrInvalidParams))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.add(allocs...); err != nil {
		return fault.New(op, err)
	}
	s.logger.Infow("vesting initialized", "allocations", len(allocs))
	return nil
}

// add registers allocations with s.mu held.
func (s *Scheduler) add(allocs ...Allocation) error {
	seen := make(map[capability.Address]struct{}, len(allocs))
	for _, a := range allocs {
		if err := a.validate(); err != nil {
			return err
		}
		if _, ok := s.allocations[a.Beneficiary]; ok {
			return fmt.Errorf("%w: %s already has an allocation", fault.ErrAlreadyInitialized, a.Beneficiary)
		}
		if _, ok := seen[a.Beneficiary]; ok {
			return fmt.Errorf("%w: %s listed twice", fault.ErrInvalidParams, a.Beneficiary)
		}
		seen[a.Beneficiary] = struct{}{}
	}
	for _, a := range allocs {
		s.allocations[a.Beneficiary] = a
	}
	return nil
}

func (s *Scheduler) has(beneficiary capability.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.allocations[beneficiary]
	return ok
}

// Release transfers everything vested and unclaimed to beneficiary. The
// signer must be the beneficiary; this is checked before any vesting math.
func (s *Scheduler) Release(ctx context.Context, signer, beneficiary capability.Address) (uint64, error) {
	const op = "release"

	r, err := s.release(ctx, signer, beneficiary)
	if err != nil {
		return 0, fault.New(op, err)
	}
	s.logger.Infow("tokens released",
		"beneficiary", beneficiary,
		"amount", humanize.Comma(int64(r.Amount)),
		"claimed", r.Claimed,
	)

	r.Program = s.cfg.Name
	s.hooksMu.RLock()
	hooks := append([]Hook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, r)
	}
	return r.Amount, nil
}

func (s *Scheduler) release(ctx context.Context, signer, beneficiary capability.Address) (Release, error) {
	if !s.access.Authorized(signer, beneficiary) {
		return Release{}, fmt.Errorf("%w: %q may not release for %q", fault.ErrUnauthorized, signer, beneficiary)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.allocations[beneficiary]
	if !ok {
		return Release{}, fmt.Errorf("%w: %q is not a beneficiary", fault.ErrUnauthorized, beneficiary)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		if !errors.Is(err, fault.ErrClockUnavailable) {
			err = fmt.Errorf("%w: %v", fault.ErrClockUnavailable, err)
		}
		return Release{}, err
	}

	entitled, err := a.Entitled(now, s.cfg.Rounding)
	if err != nil {
		return Release{}, err
	}
	if entitled <= a.Claimed {
		return Release{}, fmt.Errorf("%w: %d of %d periods elapsed", fault.ErrNoMoreReleases, a.ElapsedPeriods(now), a.PeriodCount)
	}
	amount := entitled - a.Claimed

	err = s.transfer.Transfer(ctx, capability.Transfer{
		Asset:     s.cfg.Asset,
		From:      s.cfg.Treasury,
		To:        beneficiary,
		Authority: s.cfg.Account,
		Amount:    amount,
	})
	if err != nil {
		if !errors.Is(err, fault.ErrTransferFailed) {
			err = fmt.Errorf("%w: %v", fault.ErrTransferFailed, err)
		}
		return Release{}, err
	}

	// claimed follows the schedule, not the sum of releases
	a.Claimed = entitled
	s.allocations[beneficiary] = a
	return Release{Beneficiary: beneficiary, Amount: amount, Claimed: entitled, At: now}, nil
}

// AllocationView is an allocation with its state at a point in time.
type AllocationView struct {
	Allocation
	Program        string `json:"program"`
	ElapsedPeriods uint64 `json:"elapsed_periods"`
	Entitled       uint64 `json:"entitled"`
	Claimable      uint64 `json:"claimable"`
	Rounding       string `json:"rounding"`
	At             uint64 `json:"at"`
}

func (s *Scheduler) View(ctx context.Context, beneficiary capability.Address) (AllocationView, error) {
	const op = "vesting_view"

	s.mu.Lock()
	a, ok := s.allocations[beneficiary]
	s.mu.Unlock()
	if !ok {
		return AllocationView{}, fault.New(op, fmt.Errorf("%w: %q has no allocation", fault.ErrNotInitialized, beneficiary))
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return AllocationView{}, fault.New(op, fmt.Errorf("%w: %v", fault.ErrClockUnavailable, err))
	}
	entitled, err := a.Entitled(now, s.cfg.Rounding)
	if err != nil {
		return AllocationView{}, fault.New(op, err)
	}
	claimable, err := a.Claimable(now, s.cfg.Rounding)
	if err != nil {
		return AllocationView{}, fault.New(op, err)
	}
	return AllocationView{
		Allocation:     a,
		Program:        s.cfg.Name,
		ElapsedPeriods: a.ElapsedPeriods(now),
		Entitled:       entitled,
		Claimable:      claimable,
		Rounding:       s.cfg.Rounding.String(),
		At:             now,
	}, nil
}

// Allocations returns every allocation ordered by beneficiary.
func (s *Scheduler) Allocations() []Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Allocation, 0, len(s.allocations))
	for _, a := range s.allocations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Beneficiary < out[j].Beneficiary })
	return out
}

// Restore replaces all allocations, used when loading a snapshot.
func (s *Scheduler) Restore(allocs []Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.allocations
	s.allocations = make(map[capability.Address]Allocation, len(allocs))
	if err := s.add(allocs...); err != nil {
		s.allocations = prev
		return err
	}
	return nil
}
