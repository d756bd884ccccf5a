package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/searchai/api/internal/metrics"
	"github.com/searchai/api/internal/service"
)

const sweepTimeout = time.Minute

// Sweeper deletes stored results past their retention on a cron schedule
type Sweeper struct {
	results   *service.ResultService
	retention time.Duration
	schedule  string
	cron      *cron.Cron
}

func NewSweeper(results *service.ResultService, retentionDays int, schedule string) *Sweeper {
	return &Sweeper{
		results:   results,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// Start registers the sweep and starts the scheduler
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			slog.Error("result sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	slog.Info("result sweeper started", "schedule", s.schedule, "retention", s.retention)
	return nil
}

// Stop stops the scheduler and waits for a running sweep
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Run performs one sweep
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	n, err := s.results.Sweep(ctx, s.retention)
	if err != nil {
		return 0, err
	}
	metrics.ResultsSwept.Add(float64(n))
	if n > 0 {
		slog.InfoContext(ctx, "swept expired results", "count", n)
	}
	return n, nil
}
