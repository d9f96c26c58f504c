package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bioneo/stakeledger/internal/calc"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/staking"
)

// program resolves the {variant} path parameter.
func (h *Handler) program(w http.ResponseWriter, r *http.Request) (*staking.Program, bool) {
	v, err := staking.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "UNKNOWN_PROGRAM", err.Error())
		return nil, false
	}
	p, ok := h.programs[v]
	if !ok {
		h.writeError(w, http.StatusNotFound, "UNKNOWN_PROGRAM", "program "+v.String()+" is not running")
		return nil, false
	}
	return p, true
}

func ownerOr(owner string, signer capability.Address) capability.Address {
	if owner == "" {
		return signer
	}
	return capability.Address(owner)
}

func (h *Handler) InitPool(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	tier, err := pathInt(r, "tier")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_TIER", err.Error())
		return
	}
	var req InitPoolRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := p.InitPool(r.Context(), signer, tier, req.params()); err != nil {
		h.writeFault(w, r, string(staking.OpInitPool), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, StatusResponse{Program: p.Name(), Status: "initialized"})
}

func (h *Handler) GetPools(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	if h.stats != nil {
		stats, err := h.stats.Stats(r.Context(), p.Name())
		if err != nil {
			h.writeFault(w, r, "pools", err)
			return
		}
		h.writeJSON(w, http.StatusOK, stats)
		return
	}
	pools, err := p.Pools(r.Context())
	if err != nil {
		h.writeFault(w, r, "pools", err)
		return
	}
	h.writeJSON(w, http.StatusOK, pools)
}

// PreviewStake estimates the reward of staking ?shares in {tier} for the
// tier's lock duration, assuming the pool stays as it is now.
func (h *Handler) PreviewStake(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	tier, err := pathInt(r, "tier")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_TIER", err.Error())
		return
	}
	shares, err := strconv.ParseUint(r.URL.Query().Get("shares"), 10, 64)
	if err != nil || shares == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_SHARES", "shares must be a positive integer")
		return
	}

	pools, err := p.Pools(r.Context())
	if err != nil {
		h.writeFault(w, r, "preview", err)
		return
	}
	if tier < 0 || tier >= len(pools) || !pools[tier].Active {
		h.writeError(w, http.StatusNotFound, "UNKNOWN_TIER", "tier "+strconv.Itoa(tier)+" is not active")
		return
	}

	pool := pools[tier]
	share, reward := calc.CalculateStakePreview(pool.RewardRate, pool.TotalShares, shares, pool.Duration)
	h.writeJSON(w, http.StatusOK, PreviewResponse{
		Program:        p.Name(),
		Tier:           tier,
		Shares:         shares,
		Duration:       pool.Duration,
		PoolShare:      share,
		ExpectedReward: reward,
	})
}

func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	var req StakeRequest
	if !h.decode(w, r, &req) {
		return
	}

	owner := ownerOr(req.Owner, signer)
	index, err := p.Stake(r.Context(), signer, staking.StakeRequest{
		Owner:  owner,
		Tier:   req.Tier,
		Amount: req.Amount,
		Rarity: req.Rarity,
		Mint:   req.Mint,
	})
	if err != nil {
		h.writeFault(w, r, string(staking.OpStake), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, StakeResponse{Program: p.Name(), Owner: string(owner), Index: index})
}

func (h *Handler) Unstake(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	var req UnstakeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "index is required")
		return
	}

	owner := ownerOr(req.Owner, signer)
	res, err := p.Unstake(r.Context(), signer, owner, *req.Index)
	if err != nil {
		h.writeFault(w, r, string(staking.OpUnstake), err)
		return
	}
	h.writeJSON(w, http.StatusOK, UnstakeResponse{
		Program:   p.Name(),
		Owner:     string(owner),
		Index:     *req.Index,
		Principal: res.Principal,
		Asset:     string(res.Asset),
		Reward:    res.Reward,
	})
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	var req OwnerRequest
	if !h.decode(w, r, &req) {
		return
	}

	owner := ownerOr(req.Owner, signer)
	amount, err := p.ClaimRewards(r.Context(), signer, owner)
	if err != nil {
		h.writeFault(w, r, string(staking.OpClaim), err)
		return
	}
	h.writeJSON(w, http.StatusOK, AmountResponse{Program: p.Name(), Owner: string(owner), Amount: amount})
}

func (h *Handler) SetReferrer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	var req ReferrerRequest
	if !h.decode(w, r, &req) {
		return
	}

	owner := ownerOr(req.Owner, signer)
	if err := p.SetReferrer(r.Context(), signer, owner, capability.Address(req.Referrer)); err != nil {
		h.writeFault(w, r, string(staking.OpSetReferrer), err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Program: p.Name(), Status: "referrer_set"})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.program(w, r)
	if !ok {
		return
	}
	view, err := p.Pending(r.Context(), capability.Address(chi.URLParam(r, "address")))
	if err != nil {
		h.writeFault(w, r, "pending", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
