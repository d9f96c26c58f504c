package vesting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

type SaleParams struct {
	Start         uint64 `json:"start"`
	End           uint64 `json:"end"`
	PricePerShare uint64 `json:"price_per_share"`
	TotalShares   uint64 `json:"total_shares"`
	// TokenAmount is the number of tokens sold across all shares.
	TokenAmount  uint64 `json:"token_amount"`
	PeriodLength uint64 `json:"period_length"`
	PeriodCount  uint64 `json:"period_count"`
}

type SaleConfig struct {
	Name      string
	Authority capability.Address
	// Treasury receives the payments.
	Treasury     capability.Address
	PaymentAsset capability.Asset
}

type Participation struct {
	User          capability.Address `json:"user"`
	Shares        uint64             `json:"shares"`
	PaymentAmount uint64             `json:"payment_amount"`
	TokenAmount   uint64             `json:"token_amount"`
	At            uint64             `json:"at"`
}

type SaleView struct {
	Name                string     `json:"name"`
	Initialized         bool       `json:"initialized"`
	Params              SaleParams `json:"params"`
	SoldShares          uint64     `json:"sold_shares"`
	TotalRaised         uint64     `json:"total_raised"`
	TokenAmountPerShare uint64     `json:"token_amount_per_share"`
	Participants        int        `json:"participants"`
}

// Sale is a fixed-price share sale whose purchased tokens vest through a
// Scheduler.
type Sale struct {
	cfg      SaleConfig
	sched    *Scheduler
	transfer capability.Transferer
	clock    capability.Clock
	access   capability.AccessControl
	logger   *zap.SugaredLogger

	mu            sync.Mutex
	initialized   bool
	params        SaleParams
	tokenPerShare uint64
	sold          uint64
	raised        uint64
	participants  map[capability.Address]Participation

	hooksMu sync.RWMutex
	hooks   []ParticipationHook
}

// ParticipationHook observes committed participations.
type ParticipationHook func(ctx context.Context, program string, p Participation)

func (s *Sale) OnParticipate(h ParticipationHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, h)
	s.hooksMu.Unlock()
}

func NewSale(cfg SaleConfig, sched *Scheduler, transfer capability.Transferer, clock capability.Clock, access capability.AccessControl, logger *zap.SugaredLogger) (*Sale, error) {
	if cfg.Name == "" || cfg.Authority == "" || cfg.Treasury == "" {
		return nil, fmt.Errorf("%w: sale name, authority and treasury are required", fault.ErrInvalidParams)
	}
	if sched == nil {
		return nil, fmt.Errorf("%w: sale needs a scheduler", fault.ErrInvalidParams)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sale{
		cfg:          cfg,
		sched:        sched,
		transfer:     transfer,
		clock:        clock,
		access:       access,
		logger:       logger.With("program", cfg.Name),
		participants: make(map[capability.Address]Participation),
	}, nil
}

func (s *Sale) Scheduler() *Scheduler {
	return s.sched
}

// Init opens the sale. TokenAmountPerShare is TokenAmount / TotalShares,
// floored.
func (s *Sale) Init(ctx context.Context, signer capability.Address, params SaleParams) error {
	const op = "init_sale"

	if !s.access.Authorized(signer, s.cfg.Authority) {
		return fault.New(op, fmt.Errorf("%w: %q is not the sale authority", fault.ErrUnauthorized, signer))
	}
	switch {
	case params.TotalShares == 0:
		return fault.New(op, fmt.Errorf("%w: total shares must be positive", fault.ErrInvalidParams))
	case params.End < params.Start:
		return fault.New(op, fmt.Errorf("%w: sale ends before it starts", fault.ErrInvalidParams))
	case params.PeriodLength == 0 || params.PeriodCount == 0:
		return fault.New(op, fmt.Errorf("%w: vesting period length and count are required", fault.ErrInvalidParams))
	case params.TokenAmount/params.TotalShares == 0:
		return fault.New(op, fmt.Errorf("%w: token amount %d is less than one per share", fault.ErrInvalidParams, params.TokenAmount))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return fault.New(op, fault.ErrAlreadyInitialized)
	}
	s.initialized = true
	s.params = params
	s.tokenPerShare = params.TokenAmount / params.TotalShares
	s.logger.Infow("sale initialized",
		"start", params.Start,
		"end", params.End,
		"total_shares", humanize.Comma(int64(params.TotalShares)),
		"token_per_share", s.tokenPerShare,
	)
	return nil
}

// Participate buys shares for user. The payment is moved to the treasury and
// the purchased tokens are registered as a vesting allocation starting at the
// sale start. A user can participate once.
func (s *Sale) Participate(ctx context.Context, signer, user capability.Address, shares uint64) (Participation, error) {
	const op = "participate"

	p, err := s.participate(ctx, signer, user, shares)
	if err != nil {
		return Participation{}, fault.New(op, err)
	}
	s.logger.Infow("sale participation",
		"user", user,
		"shares", shares,
		"payment", humanize.Comma(int64(p.PaymentAmount)),
	)

	s.hooksMu.RLock()
	hooks := append([]ParticipationHook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, s.cfg.Name, p)
	}
	return p, nil
}

func (s *Sale) participate(ctx context.Context, signer, user capability.Address, shares uint64) (Participation, error) {
	if !s.access.Authorized(signer, user) {
		return Participation{}, fmt.Errorf("%w: %q may not buy for %q", fault.ErrUnauthorized, signer, user)
	}
	if shares == 0 {
		return Participation{}, fmt.Errorf("%w: shares must be positive", fault.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return Participation{}, fault.ErrNotInitialized
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		if !errors.Is(err, fault.ErrClockUnavailable) {
			err = fmt.Errorf("%w: %v", fault.ErrClockUnavailable, err)
		}
		return Participation{}, err
	}
	if now < s.params.Start || now > s.params.End {
		return Participation{}, fmt.Errorf("%w: window is [%d, %d], now %d", fault.ErrSaleNotActive, s.params.Start, s.params.End, now)
	}
	if _, ok := s.participants[user]; ok || s.sched.has(user) {
		return Participation{}, fmt.Errorf("%w: %s", fault.ErrAlreadyJoined, user)
	}

	sold, err := calc.Add(s.sold, shares)
	if err != nil {
		return Participation{}, err
	}
	if sold > s.params.TotalShares {
		return Participation{}, fmt.Errorf("%w: %d left", fault.ErrInsufficientShares, s.params.TotalShares-s.sold)
	}
	payment, err := calc.Mul(s.params.PricePerShare, shares)
	if err != nil {
		return Participation{}, err
	}
	raised, err := calc.Add(s.raised, payment)
	if err != nil {
		return Participation{}, err
	}
	tokens, err := calc.Mul(s.tokenPerShare, shares)
	if err != nil {
		return Participation{}, err
	}
	alloc := Allocation{
		Beneficiary:  user,
		Total:        tokens,
		Start:        s.params.Start,
		PeriodLength: s.params.PeriodLength,
		PeriodCount:  s.params.PeriodCount,
	}
	if err := alloc.validate(); err != nil {
		return Participation{}, err
	}

	err = s.transfer.Transfer(ctx, capability.Transfer{
		Asset:     s.cfg.PaymentAsset,
		From:      user,
		To:        s.cfg.Treasury,
		Authority: signer,
		Amount:    payment,
	})
	if err != nil {
		if !errors.Is(err, fault.ErrTransferFailed) {
			err = fmt.Errorf("%w: %v", fault.ErrTransferFailed, err)
		}
		return Participation{}, err
	}

	s.sched.mu.Lock()
	err = s.sched.add(alloc)
	s.sched.mu.Unlock()
	if err != nil {
		// unreachable while the sale is the only writer of its scheduler
		return Participation{}, fmt.Errorf("%w: payment taken but allocation rejected: %v", fault.ErrInconsistentLedger, err)
	}

	p := Participation{User: user, Shares: shares, PaymentAmount: payment, TokenAmount: tokens, At: now}
	s.sold = sold
	s.raised = raised
	s.participants[user] = p
	return p, nil
}

// Claim releases the vested part of user's purchased tokens.
func (s *Sale) Claim(ctx context.Context, signer, user capability.Address) (uint64, error) {
	return s.sched.Release(ctx, signer, user)
}

func (s *Sale) View() SaleView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaleView{
		Name:                s.cfg.Name,
		Initialized:         s.initialized,
		Params:              s.params,
		SoldShares:          s.sold,
		TotalRaised:         s.raised,
		TokenAmountPerShare: s.tokenPerShare,
		Participants:        len(s.participants),
	}
}

func (s *Sale) Participation(user capability.Address) (Participation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[user]
	return p, ok
}

// SaleSnapshot is the persisted form of a sale.
type SaleSnapshot struct {
	Initialized  bool            `json:"initialized"`
	Params       SaleParams      `json:"params"`
	Sold         uint64          `json:"sold"`
	Raised       uint64          `json:"raised"`
	Participants []Participation `json:"participants"`
	Allocations  []Allocation    `json:"allocations"`
}

func (s *Sale) Snapshot() SaleSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SaleSnapshot{
		Initialized: s.initialized,
		Params:      s.params,
		Sold:        s.sold,
		Raised:      s.raised,
		Allocations: s.sched.Allocations(),
	}
	for _, a := range snap.Allocations {
		if p, ok := s.participants[a.Beneficiary]; ok {
			snap.Participants = append(snap.Participants, p)
		}
	}
	return snap
}

func (s *Sale) Restore(snap SaleSnapshot) error {
	if err := s.sched.Restore(snap.Allocations); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = snap.Initialized
	s.params = snap.Params
	s.sold = snap.Sold
	s.raised = snap.Raised
	s.tokenPerShare = 0
	if snap.Params.TotalShares > 0 {
		s.tokenPerShare = snap.Params.TokenAmount / snap.Params.TotalShares
	}
	s.participants = make(map[capability.Address]Participation, len(snap.Participants))
	for _, p := range snap.Participants {
		s.participants[p.User] = p
	}
	return nil
}
