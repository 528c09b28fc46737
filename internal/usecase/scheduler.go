package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"AssessmentPipeline/internal/ports"
)

// Pruner reclaims expired entries and reports how many it removed.
type Pruner interface {
	PruneExpired() int
}

// Scheduler wires the ticker driver with periodic cache maintenance.
type Scheduler struct {
	driver ports.Scheduler
	pruner Pruner
	logger *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring maintenance.
func NewScheduler(driver ports.Scheduler, pruner Pruner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{driver: driver, pruner: pruner, logger: logger}
}

// Start registers the prune job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pruner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if n := s.pruner.PruneExpired(); n > 0 {
			s.logger.Debug("maintenance: pruned expired cache entries",
				zap.Int("pruned", n),
				zap.Time("trigger", trigger))
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
