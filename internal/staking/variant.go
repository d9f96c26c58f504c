package staking

import (
	"fmt"
	"strings"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

const day = 24 * 60 * 60

// Variant selects how a stake is turned into shares.
type Variant uint8

const (
	// VariantLP stakes a fungible LP token; shares equal the staked amount.
	VariantLP Variant = iota
	// VariantNFT stakes a single NFT; shares equal its rarity weight.
	VariantNFT
)

func (v Variant) String() string {
	switch v {
	case VariantLP:
		return "lp"
	case VariantNFT:
		return "nft"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lp":
		return VariantLP, nil
	case "nft":
		return VariantNFT, nil
	default:
		return 0, fmt.Errorf("%w: unknown staking variant %q", fault.ErrInvalidParams, s)
	}
}

// DefaultCapacity is the ledger size of each variant.
func (v Variant) DefaultCapacity() int {
	if v == VariantNFT {
		return 20
	}
	return 10
}

// NFTAsset is the custody asset of a single NFT mint.
func NFTAsset(mint string) capability.Asset {
	return capability.Asset("nft:" + mint)
}

// DefaultDurations are the lock periods of the three tiers.
var DefaultDurations = []uint64{90 * day, 180 * day, 365 * day}

// UnstakePolicy decides what happens to an entry's pending reward on unstake.
type UnstakePolicy uint8

const (
	// SettleOnUnstake pays the pending reward together with the principal.
	SettleOnUnstake UnstakePolicy = iota
	// RequireClaimFirst rejects the unstake while a reward is pending.
	RequireClaimFirst
)

func ParseUnstakePolicy(s string) (UnstakePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "settle":
		return SettleOnUnstake, nil
	case "claim_first":
		return RequireClaimFirst, nil
	default:
		return 0, fmt.Errorf("%w: unknown unstake policy %q", fault.ErrInvalidParams, s)
	}
}

// shares derives the reward weight and custody of a stake request.
func (v Variant) shares(req StakeRequest, stakeAsset capability.Asset) (shares, principal uint64, asset capability.Asset, err error) {
	switch v {
	case VariantLP:
		if req.Amount == 0 {
			return 0, 0, "", fmt.Errorf("%w: stake amount must be positive", fault.ErrInvalidAmount)
		}
		return req.Amount, req.Amount, stakeAsset, nil
	case VariantNFT:
		if req.Rarity == 0 {
			return 0, 0, "", fmt.Errorf("%w: rarity must be positive", fault.ErrInvalidAmount)
		}
		if strings.TrimSpace(req.Mint) == "" {
			return 0, 0, "", fmt.Errorf("%w: nft mint is required", fault.ErrInvalidParams)
		}
		return req.Rarity, 1, NFTAsset(req.Mint), nil
	default:
		return 0, 0, "", fmt.Errorf("%w: %s", fault.ErrInvalidParams, v)
	}
}
