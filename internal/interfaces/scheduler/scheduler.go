package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config holds scheduler settings
type Config struct {
	// Spec is a standard five field cron expression
	Spec         string
	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
}

// Scheduler enqueues the provider's jobs on the worker pool on a cron
// schedule.
type Scheduler struct {
	cron     *cron.Cron
	pool     *WorkerPool
	provider JobProvider
	cfg      Config
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler validates the cron spec and builds the scheduler
func NewScheduler(cfg Config, provider JobProvider, logger *zap.Logger) (*Scheduler, error) {
	if provider == nil {
		return nil, fmt.Errorf("job provider is required")
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     c,
		pool:     NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.QueueSize, logger),
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if _, err := c.AddFunc(cfg.Spec, s.RunOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}

	return s, nil
}

// Start launches the worker pool and the cron loop.
func (s *Scheduler) Start() {
	s.pool.Start()
	s.cron.Start()

	if s.cfg.RunOnStartup {
		go s.RunOnce()
	}

	s.logger.Info("scheduler started",
		zap.String("spec", s.cfg.Spec),
		zap.Int("workers", s.cfg.WorkerCount),
		zap.Duration("job_delay", s.cfg.JobDelay),
	)
}

// RunOnce enqueues one batch of jobs
func (s *Scheduler) RunOnce() {
	jobs, err := s.provider(s.ctx)
	if err != nil {
		s.logger.Error("failed to build scheduled jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		s.logger.Info("no scheduled jobs to run")
		return
	}
	s.pool.SubmitBatch(jobs)
}

// Shutdown stops scheduling, then drains the worker pool within timeout.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(timeout):
		s.logger.Warn("timed out waiting for cron entries to finish")
	}

	s.cancel()
	s.pool.ShutdownWithTimeout(timeout)
	s.logger.Info("scheduler stopped")
}
