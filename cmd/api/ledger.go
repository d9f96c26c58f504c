package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/bank"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/config"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/tokenomics"
	"github.com/bioneo/stakeledger/internal/vesting"
)

const (
	idoName       = "ido"
	whitelistName = "whitelist"
	liquidity     = capability.Address("liquidity")
)

// ledger is every program the server runs, over one bank.
type ledger struct {
	bank      *bank.Memory
	programs  []*staking.Program
	sale      *vesting.Sale
	whitelist *vesting.Scheduler
}

// buildLedger funds the program accounts from the token plan and initializes
// the programs from the genesis document.
func buildLedger(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*ledger, error) {
	plan := tokenomics.Default()
	b := bank.NewMemory()
	clock := capability.SystemClock{}
	access := capability.SignerMatch{}
	admin := capability.Address(cfg.Auth.Admin)
	rewardAsset := capability.Asset(cfg.Staking.RewardAsset)

	policy, err := cfg.UnstakePolicy()
	if err != nil {
		return nil, err
	}
	rounding, err := cfg.Rounding()
	if err != nil {
		return nil, err
	}

	l := &ledger{bank: b}
	buckets := map[staking.Variant]tokenomics.Bucket{
		staking.VariantLP:  tokenomics.BucketLPStaking,
		staking.VariantNFT: tokenomics.BucketNFTStaking,
	}
	for _, v := range []staking.Variant{staking.VariantLP, staking.VariantNFT} {
		genesis, ok := cfg.Genesis.Program(v)
		if !ok {
			logger.Infow("Staking program not in genesis; skipped", "variant", v.String())
			continue
		}

		pcfg := staking.DefaultConfig(v)
		pcfg.Authority = admin
		pcfg.RewardAsset = rewardAsset
		pcfg.StakeAsset = capability.Asset(cfg.Staking.LPAsset)
		pcfg.Capacity = cfg.Capacity(v)
		pcfg.ReferralBps = cfg.Staking.ReferralBps
		pcfg.Policy = policy

		b.Delegate(pcfg.Vault, pcfg.Account)
		b.Delegate(pcfg.RewardAccount, pcfg.Account)
		if err := b.Mint(rewardAsset, pcfg.RewardAccount, plan.Amount(buckets[v])); err != nil {
			return nil, fmt.Errorf("fund %s: %w", pcfg.Name, err)
		}

		prog, err := staking.New(pcfg, b, clock, access, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pcfg.Name, err)
		}
		for _, pool := range genesis.Pools {
			if err := prog.InitPool(ctx, admin, pool.Tier, pool.Params()); err != nil {
				return nil, fmt.Errorf("%s tier %d: %w", pcfg.Name, pool.Tier, err)
			}
		}
		l.programs = append(l.programs, prog)
	}

	ido := vesting.Config{
		Name:      idoName,
		Authority: admin,
		Account:   idoName,
		Treasury:  idoName + "-treasury",
		Asset:     rewardAsset,
		Rounding:  rounding,
	}
	b.Delegate(ido.Treasury, ido.Account)
	if err := b.Mint(rewardAsset, ido.Treasury, plan.Amount(tokenomics.BucketIDO)); err != nil {
		return nil, fmt.Errorf("fund ido: %w", err)
	}
	idoSched, err := vesting.NewScheduler(ido, b, clock, access, logger)
	if err != nil {
		return nil, err
	}
	l.sale, err = vesting.NewSale(vesting.SaleConfig{
		Name:         idoName,
		Authority:    admin,
		Treasury:     idoName + "-payments",
		PaymentAsset: capability.Asset(cfg.Vesting.PaymentAsset),
	}, idoSched, b, clock, access, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Genesis.IDO.TotalShares > 0 {
		if err := l.sale.Init(ctx, admin, cfg.Genesis.IDO); err != nil {
			return nil, fmt.Errorf("ido: %w", err)
		}
	}

	wl := vesting.Config{
		Name:      whitelistName,
		Authority: admin,
		Account:   whitelistName,
		Treasury:  whitelistName + "-treasury",
		Asset:     rewardAsset,
		Rounding:  rounding,
	}
	pool := plan.Amount(tokenomics.BucketWhitelist)
	b.Delegate(wl.Treasury, wl.Account)
	if err := b.Mint(rewardAsset, wl.Treasury, pool); err != nil {
		return nil, fmt.Errorf("fund whitelist: %w", err)
	}
	l.whitelist, err = vesting.NewScheduler(wl, b, clock, access, logger)
	if err != nil {
		return nil, err
	}
	if beneficiaries := cfg.Genesis.Whitelist.Beneficiaries; len(beneficiaries) > 0 {
		addrs := make([]capability.Address, len(beneficiaries))
		for i, a := range beneficiaries {
			addrs[i] = capability.Address(a)
		}
		allocs, err := vesting.WhitelistAllocations(pool, cfg.Genesis.Whitelist.Start, addrs)
		if err != nil {
			return nil, err
		}
		if err := l.whitelist.InitVesting(ctx, admin, allocs...); err != nil {
			return nil, fmt.Errorf("whitelist: %w", err)
		}
	}

	if err := b.Mint(rewardAsset, liquidity, plan.Amount(tokenomics.BucketLiquidity)); err != nil {
		return nil, fmt.Errorf("fund liquidity: %w", err)
	}
	logger.Infow("Ledger funded", "plan", plan.String())
	return l, nil
}
