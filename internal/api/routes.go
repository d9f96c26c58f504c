package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	AuthMode     string
	CORSOrigins  []string
	RateLimitRPM int
	Timeout      time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

func (h *Handler) Routes(m *Middleware, cfg RouterConfig) *chi.Mux {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(cfg.CORSOrigins))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// Live updates hijack or stream the connection: no timeout, no compression
	r.Get("/ws", h.HandleWebSocket)
	r.Get("/v1/stream", h.HandleSSE)

	r.Group(func(r chi.Router) {
		r.Use(m.Compress)
		r.Use(m.Timeout(cfg.Timeout))
		r.Use(m.RateLimit(cfg.RateLimitRPM))

		r.Route("/v1", func(r chi.Router) {
			r.Get("/journal", h.ListJournal)
			r.Get("/events", h.RecentEvents)
			r.Get("/stats", h.PoolStats)
			r.Get("/snapshots/{program}", h.GetSnapshot)

			r.Route("/staking/{variant}", func(r chi.Router) {
				r.Get("/pools", h.GetPools)
				r.Get("/pools/{tier}/preview", h.PreviewStake)
				r.Get("/users/{address}", h.GetUser)

				r.Group(func(r chi.Router) {
					r.Use(m.Signer(cfg.AuthMode))
					r.Post("/pools/{tier}", h.InitPool)
					r.Post("/stake", h.Stake)
					r.Post("/unstake", h.Unstake)
					r.Post("/claim", h.Claim)
					r.Post("/referrer", h.SetReferrer)
				})
			})

			r.Route("/ido", func(r chi.Router) {
				r.Get("/", h.GetSale)
				r.With(m.Signer(cfg.AuthMode)).Post("/participate", h.Participate)
				r.With(m.Signer(cfg.AuthMode)).Post("/claim", h.ClaimIDO)
			})

			r.With(m.Signer(cfg.AuthMode)).Post("/whitelist/release", h.ReleaseWhitelist)
			r.Get("/vesting/{program}/{address}", h.GetVesting)
		})
	})

	return r
}
