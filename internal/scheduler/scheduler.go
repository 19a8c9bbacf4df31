// Package scheduler runs a background job on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type job interface {
	Run(ctx context.Context) error
}

type Scheduler struct {
	name     string
	job      job
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// New returns a scheduler that runs job every interval. Each run gets its own
// deadline of timeout, or of interval when timeout is zero.
func New(name string, job job, interval, timeout time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		timeout:  timeout,
		log:      log.With(slog.String("component", "scheduler"), slog.String("job", name)),
	}
}

// Start runs the job once immediately and then on every tick until ctx is
// done. Job errors are logged and do not stop the loop.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", slog.Duration("interval", s.interval))
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
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
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	if err := s.job.Run(runCtx); err != nil {
		s.log.Error("scheduled job failed", slog.Any("err", err), slog.Duration("elapsed", time.Since(started)))
		return
	}
	s.log.Debug("scheduled job finished", slog.Duration("elapsed", time.Since(started)))
}
