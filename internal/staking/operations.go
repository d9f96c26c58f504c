package staking

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
	"github.com/bioneo/stakeledger/internal/ledger"
	"github.com/bioneo/stakeledger/internal/rewards"
)

// StakeRequest carries the variant-specific stake input. LP stakes set
// Amount; NFT stakes set Rarity and Mint.
type StakeRequest struct {
	Owner  capability.Address
	Tier   int
	Amount uint64
	Rarity uint64
	Mint   string
}

type UnstakeResult struct {
	Principal uint64
	Asset     capability.Asset
	Reward    uint64
}

// InitPool activates tier with params. Only the program authority may call
// it and each tier can be initialized once.
func (p *Program) InitPool(ctx context.Context, signer capability.Address, tier int, params TierParams) error {
	const op = string(OpInitPool)

	ev, err := p.initPool(ctx, signer, tier, params)
	if err != nil {
		return fault.New(op, err)
	}
	p.logger.Infow("pool initialized",
		"tier", tier,
		"reward_rate", params.RewardRate,
		"duration", params.Duration,
	)
	p.emit(ctx, ev)
	return nil
}

func (p *Program) initPool(ctx context.Context, signer capability.Address, tier int, params TierParams) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.authorize(signer, p.cfg.Authority); err != nil {
		return Event{}, err
	}
	if params.Duration == 0 {
		return Event{}, fmt.Errorf("%w: tier duration must be positive", fault.ErrInvalidParams)
	}
	if params.MaxStake != 0 && params.MinStake > params.MaxStake {
		return Event{}, fmt.Errorf("%w: min stake %d above max stake %d", fault.ErrInvalidParams, params.MinStake, params.MaxStake)
	}
	now, err := p.now(ctx)
	if err != nil {
		return Event{}, err
	}

	tx := p.begin()
	t, pool, err := tx.tier(tier)
	if err != nil {
		return Event{}, err
	}
	if t.Active {
		return Event{}, fmt.Errorf("%w: tier %d", fault.ErrAlreadyInitialized, tier)
	}
	*pool = rewards.NewPool(params.RewardRate, now)
	*t = Tier{TierParams: params, Active: true}

	tx.commit()
	return Event{Op: OpInitPool, Actor: signer, Tier: tier, Index: -1, At: now}, nil
}

// Stake opens a new entry for req.Owner and returns its ledger index.
func (p *Program) Stake(ctx context.Context, signer capability.Address, req StakeRequest) (int, error) {
	const op = string(OpStake)

	ev, err := p.stake(ctx, signer, req)
	if err != nil {
		return 0, fault.New(op, err)
	}
	p.logger.Infow("stake committed",
		"owner", req.Owner,
		"tier", ev.Tier,
		"index", ev.Index,
		"shares", humanize.Comma(int64(ev.Amount)),
	)
	p.emit(ctx, ev)
	return ev.Index, nil
}

func (p *Program) stake(ctx context.Context, signer capability.Address, req StakeRequest) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.authorize(signer, req.Owner); err != nil {
		return Event{}, err
	}
	shares, principal, asset, err := p.cfg.Variant.shares(req, p.cfg.StakeAsset)
	if err != nil {
		return Event{}, err
	}
	now, err := p.now(ctx)
	if err != nil {
		return Event{}, err
	}

	tx := p.begin()
	t, pool, err := tx.tier(req.Tier)
	if err != nil {
		return Event{}, err
	}
	if !t.Active {
		return Event{}, fmt.Errorf("%w: tier %d", fault.ErrPoolInactive, req.Tier)
	}
	if err := calc.ValidateRange(shares, t.MinStake, t.MaxStake); err != nil {
		return Event{}, err
	}
	maturity, err := calc.Add(now, t.Duration)
	if err != nil {
		return Event{}, err
	}

	if err := rewards.Sync(pool, now); err != nil {
		return Event{}, err
	}
	if err := pool.AddShares(shares); err != nil {
		return Event{}, err
	}

	entry := ledger.Entry{
		Position:     rewards.Position{Shares: shares},
		Tier:         req.Tier,
		Principal:    principal,
		Asset:        string(asset),
		StartTime:    now,
		MaturityTime: maturity,
	}
	if p.cfg.Variant == VariantNFT {
		entry.Rarity = req.Rarity
	}
	// no retroactive reward for time before the stake
	if err := rewards.RebaseDebt(&entry.Position, pool); err != nil {
		return Event{}, err
	}

	index, err := tx.ledger(req.Owner, true).Allocate(entry)
	if err != nil {
		return Event{}, err
	}
	t.Entries++
	tx.totalEntries++

	err = p.send(ctx, []capability.Transfer{{
		Asset:     asset,
		From:      req.Owner,
		To:        p.cfg.Vault,
		Authority: signer,
		Amount:    principal,
	}})
	if err != nil {
		return Event{}, err
	}

	tx.commit()
	return Event{Op: OpStake, Actor: req.Owner, Tier: req.Tier, Index: index, Amount: shares, At: now}, nil
}

// Unstake closes a matured entry and returns its principal. Depending on the
// program policy the pending reward is paid along with it or must have been
// claimed already.
func (p *Program) Unstake(ctx context.Context, signer, owner capability.Address, index int) (UnstakeResult, error) {
	const op = string(OpUnstake)

	res, ev, err := p.unstake(ctx, signer, owner, index)
	if err != nil {
		return UnstakeResult{}, fault.New(op, err)
	}
	p.logger.Infow("unstake committed",
		"owner", owner,
		"index", index,
		"principal", res.Principal,
		"reward", humanize.Comma(int64(res.Reward)),
	)
	p.emit(ctx, ev)
	return res, nil
}

func (p *Program) unstake(ctx context.Context, signer, owner capability.Address, index int) (UnstakeResult, Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.authorize(signer, owner); err != nil {
		return UnstakeResult{}, Event{}, err
	}
	now, err := p.now(ctx)
	if err != nil {
		return UnstakeResult{}, Event{}, err
	}

	tx := p.begin()
	l := tx.ledger(owner, false)
	if l == nil {
		return UnstakeResult{}, Event{}, fmt.Errorf("%w: %s has no ledger", fault.ErrInvalidIndex, owner)
	}
	entry, err := l.ActiveEntry(index)
	if err != nil {
		return UnstakeResult{}, Event{}, err
	}
	if !entry.Matured(now) {
		return UnstakeResult{}, Event{}, fmt.Errorf("%w: matures at %d, now %d", fault.ErrStakeNotMatured, entry.MaturityTime, now)
	}

	t, pool, err := tx.tier(entry.Tier)
	if err != nil {
		return UnstakeResult{}, Event{}, err
	}
	if err := rewards.Sync(pool, now); err != nil {
		return UnstakeResult{}, Event{}, err
	}
	pending, err := rewards.PendingReward(&entry.Position, pool)
	if err != nil {
		return UnstakeResult{}, Event{}, err
	}
	if pending > 0 && p.cfg.Policy == RequireClaimFirst {
		return UnstakeResult{}, Event{}, fmt.Errorf("%w: %d pending", fault.ErrClaimRequired, pending)
	}
	if err := rewards.RebaseDebt(&entry.Position, pool); err != nil {
		return UnstakeResult{}, Event{}, err
	}
	if err := pool.RemoveShares(entry.Shares); err != nil {
		return UnstakeResult{}, Event{}, fmt.Errorf("%w: %v", fault.ErrInconsistentLedger, err)
	}

	res := UnstakeResult{Principal: entry.Principal, Asset: capability.Asset(entry.Asset), Reward: pending}
	tierIndex := entry.Tier
	if err := l.Close(index); err != nil {
		return UnstakeResult{}, Event{}, err
	}
	t.Entries--
	tx.totalEntries--

	legs := []capability.Transfer{{
		Asset:     res.Asset,
		From:      p.cfg.Vault,
		To:        owner,
		Authority: p.cfg.Account,
		Amount:    res.Principal,
	}}
	rewardLegs, err := tx.payReward(owner, l, pending)
	if err != nil {
		return UnstakeResult{}, Event{}, err
	}
	if err := p.send(ctx, append(legs, rewardLegs...)); err != nil {
		return UnstakeResult{}, Event{}, err
	}

	tx.commit()
	ev := Event{Op: OpUnstake, Actor: owner, Tier: tierIndex, Index: index, Amount: res.Principal, Reward: pending, At: now}
	return res, ev, nil
}

// ClaimRewards pays owner the pending reward of every active entry. Every
// referenced tier is synced once, every entry is rebased, and the transfer
// happens before anything is committed.
func (p *Program) ClaimRewards(ctx context.Context, signer, owner capability.Address) (uint64, error) {
	const op = string(OpClaim)

	ev, err := p.claim(ctx, signer, owner)
	if err != nil {
		return 0, fault.New(op, err)
	}
	p.logger.Infow("rewards claimed", "owner", owner, "amount", humanize.Comma(int64(ev.Reward)))
	p.emit(ctx, ev)
	return ev.Reward, nil
}

func (p *Program) claim(ctx context.Context, signer, owner capability.Address) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.authorize(signer, owner); err != nil {
		return Event{}, err
	}
	now, err := p.now(ctx)
	if err != nil {
		return Event{}, err
	}

	tx := p.begin()
	l := tx.ledger(owner, false)
	if l == nil {
		return Event{}, fault.ErrNoRewardsToClaim
	}
	if err := tx.registry.SyncTiers(now, l.Tiers()); err != nil {
		return Event{}, err
	}

	var total uint64
	for _, i := range l.ActiveIndexes() {
		entry, err := l.Entry(i)
		if err != nil {
			return Event{}, err
		}
		pool, err := tx.registry.Pool(entry.Tier)
		if err != nil {
			return Event{}, err
		}
		pending, err := rewards.PendingReward(&entry.Position, pool)
		if err != nil {
			return Event{}, err
		}
		if total, err = calc.Add(total, pending); err != nil {
			return Event{}, err
		}
		if err := rewards.RebaseDebt(&entry.Position, pool); err != nil {
			return Event{}, err
		}
	}
	l.Refresh()
	if total == 0 {
		return Event{}, fault.ErrNoRewardsToClaim
	}

	legs, err := tx.payReward(owner, l, total)
	if err != nil {
		return Event{}, err
	}
	if err := p.send(ctx, legs); err != nil {
		return Event{}, err
	}

	tx.commit()
	return Event{Op: OpClaim, Actor: owner, Tier: -1, Index: -1, Reward: total, At: now}, nil
}

// payReward books amount to owner and the referral bonus to owner's referrer,
// returning the transfer legs that pay them.
func (t *txn) payReward(owner capability.Address, l *ledger.UserLedger, amount uint64) ([]capability.Transfer, error) {
	if amount == 0 {
		return nil, nil
	}
	cfg := t.p.cfg
	if err := l.CreditReward(amount); err != nil {
		return nil, err
	}
	legs := []capability.Transfer{{
		Asset:     cfg.RewardAsset,
		From:      cfg.RewardAccount,
		To:        owner,
		Authority: cfg.Account,
		Amount:    amount,
	}}

	if l.Referrer == "" || cfg.ReferralBps == 0 {
		return legs, nil
	}
	bonus, err := calc.ApplyBps(amount, cfg.ReferralBps)
	if err != nil || bonus == 0 {
		return legs, err
	}
	ref := capability.Address(l.Referrer)
	if err := t.ledger(ref, true).CreditReferral(bonus); err != nil {
		return nil, err
	}
	return append(legs, capability.Transfer{
		Asset:     cfg.RewardAsset,
		From:      cfg.RewardAccount,
		To:        ref,
		Authority: cfg.Account,
		Amount:    bonus,
	}), nil
}

// SetReferrer records who referred owner. It can be set once.
func (p *Program) SetReferrer(ctx context.Context, signer, owner, referrer capability.Address) error {
	const op = string(OpSetReferrer)

	ev, err := p.setReferrer(ctx, signer, owner, referrer)
	if err != nil {
		return fault.New(op, err)
	}
	p.logger.Infow("referrer set", "owner", owner, "referrer", referrer)
	p.emit(ctx, ev)
	return nil
}

func (p *Program) setReferrer(ctx context.Context, signer, owner, referrer capability.Address) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.authorize(signer, owner); err != nil {
		return Event{}, err
	}
	if referrer == "" || referrer == owner {
		return Event{}, fmt.Errorf("%w: referrer %q", fault.ErrInvalidAddress, referrer)
	}
	now, err := p.now(ctx)
	if err != nil {
		return Event{}, err
	}

	tx := p.begin()
	l := tx.ledger(owner, true)
	if l.Referrer != "" {
		return Event{}, fmt.Errorf("%w: %s", fault.ErrReferrerSet, l.Referrer)
	}
	l.Referrer = string(referrer)
	tx.ledger(referrer, true).ReferralCount++

	tx.commit()
	return Event{Op: OpSetReferrer, Actor: owner, Tier: -1, Index: -1, At: now}, nil
}
