// Package events turns committed staking and vesting operations into journal
// entries, pub/sub messages, cached snapshots and metrics. None of these side
// effects can undo the operation; their failures are logged and counted.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/metrics"
	"github.com/bioneo/stakeledger/internal/repository"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/store"
	"github.com/bioneo/stakeledger/internal/vesting"
)

const (
	OpRelease     = "release"
	OpParticipate = "participate"
)

const defaultTimeout = 3 * time.Second

type Recorder struct {
	journal repository.Journal
	cache   *store.Cache
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	timeout time.Duration
}

func NewRecorder(journal repository.Journal, cache *store.Cache, m *metrics.Metrics, logger *zap.SugaredLogger) *Recorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Recorder{
		journal: journal,
		cache:   cache,
		metrics: m,
		logger:  logger,
		timeout: defaultTimeout,
	}
}

// WatchStaking records every committed operation of p.
func (r *Recorder) WatchStaking(p *staking.Program) {
	p.OnCommit(func(ctx context.Context, ev staking.Event) {
		if ev.Reward > 0 {
			r.metrics.RecordRewardPaid(ctx, ev.Program, ev.Reward)
		}
		entry := repository.NewEntry(ev.Program, string(ev.Op), string(ev.Actor), ev.Tier, ev.Index, ev.Amount, ev.Reward, ev.At)
		r.record(ctx, entry, func() any { return p.Snapshot() })
	})
}

// WatchVesting records the releases of s.
func (r *Recorder) WatchVesting(s *vesting.Scheduler) {
	r.watchReleases(s, func() any { return s.Allocations() })
}

// WatchSale records participations and claims of the sale.
func (r *Recorder) WatchSale(sale *vesting.Sale) {
	snapshot := func() any { return sale.Snapshot() }
	sale.OnParticipate(func(ctx context.Context, program string, p vesting.Participation) {
		entry := repository.NewEntry(program, OpParticipate, string(p.User), -1, -1, p.TokenAmount, 0, p.At)
		r.record(ctx, entry, snapshot)
	})
	r.watchReleases(sale.Scheduler(), snapshot)
}

func (r *Recorder) watchReleases(s *vesting.Scheduler, snapshot func() any) {
	s.OnRelease(func(ctx context.Context, rel vesting.Release) {
		r.metrics.RecordVestingReleased(ctx, rel.Program, rel.Amount)
		entry := repository.NewEntry(rel.Program, OpRelease, string(rel.Beneficiary), -1, -1, rel.Amount, 0, rel.At)
		r.record(ctx, entry, snapshot)
	})
}

// record runs detached from the request so a client hanging up does not drop
// the journal entry of an operation that already happened.
func (r *Recorder) record(ctx context.Context, entry repository.Entry, snapshot func() any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	r.metrics.RecordOperation(ctx, entry.Program, entry.Op)

	if r.journal != nil {
		stored, err := r.journal.Append(ctx, entry)
		if err != nil {
			r.fail(ctx, "journal", entry, err)
		} else {
			entry = stored
		}
	}

	if r.cache == nil {
		return
	}
	if err := r.cache.PushEvent(ctx, entry); err != nil {
		r.fail(ctx, "feed", entry, err)
	}
	if err := r.cache.Publish(ctx, store.TopicEvents, entry); err != nil {
		r.fail(ctx, "publish", entry, err)
	}
	if err := r.cache.SetSnapshot(ctx, entry.Program, snapshot()); err != nil {
		r.fail(ctx, "snapshot", entry, err)
	}
}

func (r *Recorder) fail(ctx context.Context, stage string, entry repository.Entry, err error) {
	r.metrics.RecordSideEffectError(ctx, stage)
	r.logger.Errorw("Failed to record committed operation",
		"stage", stage,
		"program", entry.Program,
		"op", entry.Op,
		"actor", entry.Actor,
		"error", err,
	)
}
