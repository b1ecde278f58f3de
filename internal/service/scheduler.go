package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
)

// Scheduler periodically runs a full discovery+claim+run cycle so the
// pipeline works unattended between manual triggers.
type Scheduler struct {
	config       *config.SchedulerConfig
	logger       *zap.Logger
	orchestrator *Orchestrator
	recovery     *RecoveryService
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, orchestrator *Orchestrator, recovery *RecoveryService) *Scheduler {
	return &Scheduler{
		config:       cfg,
		logger:       logger,
		orchestrator: orchestrator,
		recovery:     recovery,
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.RunInterval)
	if err != nil {
		s.logger.Error("Invalid run interval", zap.String("interval", s.config.RunInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("run_interval", s.config.RunInterval))

	s.ticker = time.NewTicker(interval)

	// Run first cycle immediately
	go func() {
		s.logger.Info("Running initial cycle")
		s.runCycle(ctx)
	}()

	// Start periodic cycles
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.logger.Info("Running scheduled cycle")
				s.runCycle(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	// Jobs abandoned mid-pipeline by a crash would otherwise sit in a
	// non-terminal state forever; reset them before discovering work.
	if s.recovery != nil {
		if cutoff, err := time.ParseDuration(s.config.StuckAfter); err == nil {
			count, err := s.recovery.RecoverStuck(cutoff)
			if err != nil {
				s.logger.Error("Stuck job recovery failed", zap.Error(err))
			} else if count > 0 {
				s.logger.Warn("Reset stuck jobs for re-run", zap.Int("count", count))
			}
		}
	}

	start := time.Now()
	result, err := s.orchestrator.RunCycle(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Cycle failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	s.logger.Info("Cycle completed",
		zap.String("result", result.Message()),
		zap.Duration("duration", duration))
}
