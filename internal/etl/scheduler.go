package etl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the pipeline on a fixed cadence. Runs are strictly
// sequential: a run must finish or fail before the next tick fires, so the
// same table is never synced by two runs at once. Each run gets a bounded
// timeout; a timed-out run counts as failed and the next tick retries from
// the last confirmed watermark.
type Scheduler struct {
	pipeline   *Pipeline
	interval   time.Duration
	runTimeout time.Duration
	log        *zap.Logger
}

func NewScheduler(pipeline *Pipeline, interval, runTimeout time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		pipeline:   pipeline,
		interval:   interval,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Run blocks until ctx is cancelled, executing one sync cycle immediately
// and then one per interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Batch scheduler starting",
		zap.Duration("interval", s.interval),
		zap.Duration("run_timeout", s.runTimeout))

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Batch scheduler shutting down")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if err := s.pipeline.RunCycle(runCtx); err != nil {
		// Failures are recoverable by replay; never fatal to the process.
		s.log.Error("Sync cycle failed", zap.Error(err))
	}
}
