// Package scheduler runs the periodic maintenance sweep: weekly credit
// resets for subscribers and the one-time trial grant for everyone else.
package scheduler

import (
	"context"
	"time"

	"github.com/tradecore/leadengine/internal/actorcontext"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	"github.com/tradecore/leadengine/internal/lock"
	obsmetrics "github.com/tradecore/leadengine/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sweepLockKey = "leadengine:scheduler:weekly_reset"
	sweepTimeout = 2 * time.Minute
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Credits    creditdomain.Service
	Locker     *lock.Locker        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	clock      clock.Clock
	credits    creditdomain.Service
	locker     *lock.Locker
	obsMetrics *obsmetrics.Metrics
	interval   time.Duration
	batchSize  int
}

func New(p Params) *Scheduler {
	interval := time.Duration(p.Config.SchedulerIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	batchSize := p.Config.SchedulerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		credits:    p.Credits,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// RunOnce performs a single sweep. The advisory lock keeps concurrent
// instances from claiming overlapping batches; losing the lock is a
// normal outcome, not an error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()
	ctx = actorcontext.WithActor(ctx, actorcontext.ActorTypeSystem, "scheduler")

	token, ok, err := s.locker.TryLock(ctx, sweepLockKey, sweepTimeout)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("weekly reset sweep held by another instance")
		return nil
	}
	defer func() {
		if err := s.locker.Release(ctx, sweepLockKey, token); err != nil {
			s.log.Warn("sweep lock release failed", zap.Error(err))
		}
	}()

	s.obsMetrics.IncSchedulerSweep()
	start := s.clock.Now()
	total := creditdomain.ResetSummary{}

	for {
		summary, err := s.credits.WeeklyReset(ctx, s.batchSize)
		if err != nil {
			return err
		}
		total.Processed += summary.Processed
		total.ToppedUp += summary.ToppedUp
		total.TrialsGranted += summary.TrialsGranted
		if summary.Processed < s.batchSize {
			break
		}
	}

	if total.Processed > 0 {
		s.log.Info("weekly reset sweep complete",
			zap.Int("processed", total.Processed),
			zap.Int("topped_up", total.ToppedUp),
			zap.Int("trials_granted", total.TrialsGranted),
			zap.Duration("elapsed", s.clock.Now().Sub(start)))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
