package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bioneo/stakeledger/internal/capability"
)

func (h *Handler) Participate(w http.ResponseWriter, r *http.Request) {
	if h.sale == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no sale configured")
		return
	}
	signer, ok := h.signer(w, r)
	if !ok {
		return
	}
	var req ParticipateRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.sale.Participate(r.Context(), signer, ownerOr(req.User, signer), req.Shares)
	if err != nil {
		h.writeFault(w, r, "participate", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ClaimIDO(w http.ResponseWriter, r *http.Request) {
	if h.sale == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no sale configured")
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

	user := ownerOr(req.Owner, signer)
	amount, err := h.sale.Claim(r.Context(), signer, user)
	if err != nil {
		h.writeFault(w, r, "release", err)
		return
	}
	h.writeJSON(w, http.StatusOK, AmountResponse{Program: h.sale.Scheduler().Name(), Owner: string(user), Amount: amount})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	if h.sale == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no sale configured")
		return
	}
	resp := SaleResponse{SaleView: h.sale.View()}
	if user := r.URL.Query().Get("user"); user != "" {
		if p, ok := h.sale.Participation(capability.Address(user)); ok {
			resp.Participation = &p
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReleaseWhitelist(w http.ResponseWriter, r *http.Request) {
	if h.whitelist == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "no whitelist configured")
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

	beneficiary := ownerOr(req.Owner, signer)
	amount, err := h.whitelist.Release(r.Context(), signer, beneficiary)
	if err != nil {
		h.writeFault(w, r, "release", err)
		return
	}
	h.writeJSON(w, http.StatusOK, AmountResponse{Program: h.whitelist.Name(), Owner: string(beneficiary), Amount: amount})
}

func (h *Handler) GetVesting(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.schedulers[chi.URLParam(r, "program")]
	if !ok {
		h.writeError(w, http.StatusNotFound, "UNKNOWN_PROGRAM", "unknown vesting program "+chi.URLParam(r, "program"))
		return
	}
	view, err := sched.View(r.Context(), capability.Address(chi.URLParam(r, "address")))
	if err != nil {
		h.writeFault(w, r, "vesting_view", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
