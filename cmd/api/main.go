package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bioneo/stakeledger/internal/api"
	"github.com/bioneo/stakeledger/internal/config"
	"github.com/bioneo/stakeledger/internal/events"
	"github.com/bioneo/stakeledger/internal/jobs"
	"github.com/bioneo/stakeledger/internal/log"
	"github.com/bioneo/stakeledger/internal/metrics"
	"github.com/bioneo/stakeledger/internal/repository"
	"github.com/bioneo/stakeledger/internal/store"
	"github.com/bioneo/stakeledger/internal/ws"
	"github.com/bioneo/stakeledger/pkg/kv"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("Server failed", "error", err)
	}
	logger.Infow("Server stopped")
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Infow("Starting stake ledger API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"genesis", cfg.GenesisPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("stakeledger")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	// Journal: Postgres when configured, in memory otherwise
	journal, closeJournal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	cache, err := store.NewCache(store.Config{
		Backend:   kv.Backend(cfg.Cache.KVBackend),
		RedisAddr: cfg.Cache.RedisAddr,
	}, logger)
	if err != nil {
		return fmt.Errorf("setup cache: %w", err)
	}
	defer cache.Close()
	logger.Infow("Cache ready", "backend", cfg.Cache.KVBackend, "in_memory_pubsub", cache.IsInMemoryMode())

	l, err := buildLedger(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}

	recorder := events.NewRecorder(journal, cache, metricsObj, logger)
	for _, p := range l.programs {
		recorder.WatchStaking(p)
	}
	recorder.WatchSale(l.sale)
	recorder.WatchVesting(l.whitelist)

	statsPublisher := jobs.NewStatsPublisher(l.programs, cache, cfg.Jobs.StatsInterval, logger)
	wsHub := ws.NewHub(cache, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(cache, logger)

	handler := api.NewHandler(api.Services{
		Programs:  l.programs,
		Stats:     statsPublisher,
		Sale:      l.sale,
		Whitelist: l.whitelist,
		Journal:   journal,
		Cache:     cache,
		Hub:       wsHub,
		SSE:       sseHandler,
	}, logger, metricsObj)
	router := handler.Routes(api.NewMiddleware(logger, metricsObj), api.RouterConfig{
		AuthMode:       cfg.Auth.Mode,
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		MetricsHandler: metricsHandler,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := statsPublisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stats publisher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infow("API server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("Shutdown signal received")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			return server.Close()
		}
		return nil
	})
	return g.Wait()
}

func openJournal(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (repository.Journal, func(), error) {
	if cfg.Database.PostgresDSN == "" {
		logger.Infow("No database configured; journal kept in memory")
		return repository.NewMemory(), func() {}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := repository.OpenPostgres(openCtx, cfg.Database.PostgresDSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	if err := pg.Migrate(openCtx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("migrate journal: %w", err)
	}
	logger.Infow("Journal database ready")
	return pg, func() { pg.Close() }, nil
}
