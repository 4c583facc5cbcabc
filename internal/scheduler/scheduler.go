// Package scheduler runs the periodic pipeline jobs (expiry sweeps, view
// aggregation) on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// Add registers a named job on a standard 5-field cron spec. Jobs get a
// bounded context; a failing run is logged and waits for the next tick.
func (s *Scheduler) Add(spec, name string, timeout time.Duration, job func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("scheduled job failed", "job", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		s.log.Info("scheduled job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
