package usecase

import (
	"context"
	"log/slog"

	"NichePress/internal/ports"
)

// Sweeper wires the cron-like driver with the orchestrator's sweep.
type Sweeper struct {
	driver       ports.SweepDriver
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewSweeper returns a helper to start/stop recurring sweeps.
func NewSweeper(driver ports.SweepDriver, orchestrator *Orchestrator, logger *slog.Logger) *Sweeper {
	return &Sweeper{driver: driver, orchestrator: orchestrator, logger: logger}
}

// Start registers the sweep with the provided driver.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func() {
		if err := s.orchestrator.Sweep(ctx); err != nil && s.logger != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
