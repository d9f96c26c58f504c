package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
	"github.com/bioneo/stakeledger/internal/jobs"
	"github.com/bioneo/stakeledger/internal/metrics"
	"github.com/bioneo/stakeledger/internal/repository"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/store"
	"github.com/bioneo/stakeledger/internal/vesting"
	"github.com/bioneo/stakeledger/internal/ws"
)

// Services are the components exposed over HTTP. Nil members disable their
// endpoints.
type Services struct {
	Programs  []*staking.Program
	Stats     *jobs.StatsPublisher
	Sale      *vesting.Sale
	Whitelist *vesting.Scheduler
	Journal   repository.Journal
	Cache     *store.Cache
	Hub       *ws.Hub
	SSE       *ws.SSEHandler
}

type Handler struct {
	programs   map[staking.Variant]*staking.Program
	schedulers map[string]*vesting.Scheduler
	stats      *jobs.StatsPublisher
	sale       *vesting.Sale
	whitelist  *vesting.Scheduler
	journal    repository.Journal
	cache      *store.Cache
	wsHub      *ws.Hub
	sseHandler *ws.SSEHandler
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
}

func NewHandler(svc Services, logger *zap.SugaredLogger, metrics *metrics.Metrics) *Handler {
	h := &Handler{
		programs:   make(map[staking.Variant]*staking.Program, len(svc.Programs)),
		schedulers: make(map[string]*vesting.Scheduler),
		stats:      svc.Stats,
		sale:       svc.Sale,
		whitelist:  svc.Whitelist,
		journal:    svc.Journal,
		cache:      svc.Cache,
		wsHub:      svc.Hub,
		sseHandler: svc.SSE,
		logger:     logger,
		metrics:    metrics,
	}
	for _, p := range svc.Programs {
		h.programs[p.Config().Variant] = p
	}
	if svc.Sale != nil {
		sched := svc.Sale.Scheduler()
		h.schedulers[sched.Name()] = sched
	}
	if svc.Whitelist != nil {
		h.schedulers[svc.Whitelist.Name()] = svc.Whitelist
	}
	return h
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	if h.journal != nil {
		resp.Checks["journal"] = checkResult(h.journal.Ping(r.Context()))
	}
	if h.cache != nil {
		resp.Checks["cache"] = checkResult(h.cache.Ping(r.Context()))
	}

	status := http.StatusOK
	for _, v := range resp.Checks {
		if v != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, status, resp)
}

func checkResult(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "live updates disabled")
		return
	}
	h.wsHub.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if h.sseHandler == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "live updates disabled")
		return
	}
	h.sseHandler.HandleSSE(w, r)
}

// Journal and event feed

func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "journal disabled")
		return
	}

	q := r.URL.Query()
	filter := repository.Filter{
		Program: q.Get("program"),
		Actor:   q.Get("actor"),
		Cursor:  q.Get("cursor"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "INVALID_LIMIT", fmt.Sprintf("invalid limit %q", v))
			return
		}
		filter.Limit = limit
	}

	items, next, err := h.journal.List(r.Context(), filter)
	if errors.Is(err, repository.ErrInvalidCursor) {
		h.writeError(w, http.StatusBadRequest, "INVALID_CURSOR", err.Error())
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "JOURNAL_ERROR", err.Error())
		return
	}
	if items == nil {
		items = []repository.Entry{}
	}
	h.writeJSON(w, http.StatusOK, JournalResponse{Items: items, NextCursor: next})
}

func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "event feed disabled")
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.cache.RecentEvents(r.Context(), n)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "CACHE_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// GetSnapshot returns the last cached state snapshot of {program}.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "snapshots disabled")
		return
	}
	program := chi.URLParam(r, "program")
	var snap json.RawMessage
	err := h.cache.GetSnapshot(r.Context(), program, &snap)
	if errors.Is(err, store.ErrCacheMiss) {
		h.writeError(w, http.StatusNotFound, "NO_SNAPSHOT", "no snapshot for "+program)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "CACHE_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// PoolStats returns the last published pool statistics of every program.
func (h *Handler) PoolStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "stats disabled")
		return
	}
	stats, err := h.cache.PoolStats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "CACHE_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Utility methods

// signer returns the authenticated caller. Routes without the Signer
// middleware never call it.
func (h *Handler) signer(w http.ResponseWriter, r *http.Request) (capability.Address, bool) {
	s, ok := SignerFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "MISSING_SIGNER", "request is not signed")
	}
	return s, ok
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// writeFault reports a failed core operation.
func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusOf(err)
	h.metrics.RecordFailure(r.Context(), opOf(err, op), fault.KindOf(err).String())
	h.writeError(w, status, code, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, h.logger, status, code, message)
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		logger.Debugw("API error", "code", code, "message", message, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func pathInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
