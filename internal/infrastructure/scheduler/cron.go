package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NichePress/internal/ports"
)

// CronScheduler runs the planned-niche sweep on a cron expression.
// Start and Stop may be called from different goroutines.
type CronScheduler struct {
	spec     string
	location *time.Location

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.SweepDriver = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, location *time.Location) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{spec: spec, location: location}
}

// Start registers the job and begins the cron loop. The job also fires once
// immediately so niches planned before startup are not left waiting a full
// schedule interval. Teardown is Stop's job; the ctx here only bounds the
// immediate fire the caller's job closure observes.
func (c *CronScheduler) Start(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	if _, err := runner.AddFunc(c.spec, job); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}

	go job()
	runner.Start()
	c.cron = runner

	return nil
}

// Stop halts the cron loop; running jobs are allowed to complete. Safe to
// call more than once and without a prior successful Start.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}
	stopCtx := runner.Stop()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
