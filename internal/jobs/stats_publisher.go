// Package jobs runs the background work of the api server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/store"
)

// PoolStats is the published projection of one staking program.
type PoolStats struct {
	Program      string             `json:"program"`
	Variant      string             `json:"variant"`
	Pools        []staking.PoolView `json:"pools"`
	TotalEntries uint64             `json:"total_entries"`
	At           int64              `json:"at"`
}

// StatsPublisher periodically publishes the synced pool projections of every
// staking program. It is also the read path for pool stats: concurrent reads
// of one program share a single computation.
type StatsPublisher struct {
	programs map[string]*staking.Program
	order    []string
	cache    *store.Cache
	logger   *zap.SugaredLogger
	interval time.Duration
	sf       singleflight.Group
}

func NewStatsPublisher(programs []*staking.Program, cache *store.Cache, interval time.Duration, logger *zap.SugaredLogger) *StatsPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &StatsPublisher{
		programs: make(map[string]*staking.Program, len(programs)),
		cache:    cache,
		logger:   logger,
		interval: interval,
	}
	for _, prog := range programs {
		p.programs[prog.Name()] = prog
		p.order = append(p.order, prog.Name())
	}
	return p
}

// Stats returns the current projection of program.
func (p *StatsPublisher) Stats(ctx context.Context, program string) (PoolStats, error) {
	prog, ok := p.programs[program]
	if !ok {
		return PoolStats{}, fmt.Errorf("unknown program %q", program)
	}

	v, err, _ := p.sf.Do(program, func() (interface{}, error) {
		pools, err := prog.Pools(ctx)
		if err != nil {
			return nil, err
		}
		return PoolStats{
			Program:      program,
			Variant:      prog.Config().Variant.String(),
			Pools:        pools,
			TotalEntries: prog.TotalEntries(),
			At:           time.Now().Unix(),
		}, nil
	})
	if err != nil {
		return PoolStats{}, err
	}
	return v.(PoolStats), nil
}

func (p *StatsPublisher) Start(ctx context.Context) error {
	p.logger.Infow("Starting pool stats publisher", "programs", p.order, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PublishOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Pool stats publisher stopping")
			return ctx.Err()
		case <-ticker.C:
			p.PublishOnce(ctx)
		}
	}
}

// PublishOnce caches and publishes the stats of every program. Failures are
// logged per program and do not stop the others.
func (p *StatsPublisher) PublishOnce(ctx context.Context) {
	for _, name := range p.order {
		stats, err := p.Stats(ctx, name)
		if err != nil {
			p.logger.Warnw("Failed to compute pool stats", "program", name, "error", err)
			continue
		}
		if err := p.cache.SetPoolStats(ctx, name, stats); err != nil {
			p.logger.Warnw("Failed to cache pool stats", "program", name, "error", err)
		}
		if err := p.cache.Publish(ctx, store.TopicPoolStats, stats); err != nil {
			p.logger.Warnw("Failed to publish pool stats", "program", name, "error", err)
			continue
		}

		var shares uint64
		for _, pool := range stats.Pools {
			shares += pool.TotalShares
		}
		p.logger.Debugw("Published pool stats",
			"program", name,
			"total_shares", humanize.Comma(int64(shares)),
			"entries", stats.TotalEntries,
		)
	}
}
