package api

import (
	"github.com/shopspring/decimal"

	"github.com/bioneo/stakeledger/internal/repository"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/vesting"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Staking requests. Owner defaults to the signer.

type InitPoolRequest struct {
	RewardRate uint64 `json:"reward_rate"`
	Duration   uint64 `json:"duration"`
	MinStake   uint64 `json:"min_stake"`
	MaxStake   uint64 `json:"max_stake"`
}

func (r InitPoolRequest) params() staking.TierParams {
	return staking.TierParams{
		RewardRate: r.RewardRate,
		Duration:   r.Duration,
		MinStake:   r.MinStake,
		MaxStake:   r.MaxStake,
	}
}

type StakeRequest struct {
	Owner  string `json:"owner,omitempty"`
	Tier   int    `json:"tier"`
	Amount uint64 `json:"amount,omitempty"`
	Rarity uint64 `json:"rarity,omitempty"`
	Mint   string `json:"mint,omitempty"`
}

type UnstakeRequest struct {
	Owner string `json:"owner,omitempty"`
	Index *int   `json:"index"`
}

type OwnerRequest struct {
	Owner string `json:"owner,omitempty"`
}

type ReferrerRequest struct {
	Owner    string `json:"owner,omitempty"`
	Referrer string `json:"referrer"`
}

type ParticipateRequest struct {
	User   string `json:"user,omitempty"`
	Shares uint64 `json:"shares"`
}

// Responses

type StakeResponse struct {
	Program string `json:"program"`
	Owner   string `json:"owner"`
	Index   int    `json:"index"`
}

type UnstakeResponse struct {
	Program   string `json:"program"`
	Owner     string `json:"owner"`
	Index     int    `json:"index"`
	Principal uint64 `json:"principal"`
	Asset     string `json:"asset"`
	Reward    uint64 `json:"reward"`
}

type PreviewResponse struct {
	Program        string          `json:"program"`
	Tier           int             `json:"tier"`
	Shares         uint64          `json:"shares"`
	Duration       uint64          `json:"duration"`
	PoolShare      decimal.Decimal `json:"pool_share"`
	ExpectedReward decimal.Decimal `json:"expected_reward"`
}

type AmountResponse struct {
	Program string `json:"program"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

type StatusResponse struct {
	Program string `json:"program"`
	Status  string `json:"status"`
}

type SaleResponse struct {
	vesting.SaleView
	Participation *vesting.Participation `json:"participation,omitempty"`
}

type JournalResponse struct {
	Items      []repository.Entry `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
