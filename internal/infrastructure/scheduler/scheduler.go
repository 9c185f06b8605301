package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// RunExecutor runs one guarded reconciliation pass; the application RunService implements it
type RunExecutor interface {
	Execute(ctx context.Context, trigger reconciliation.RunTrigger) (*reconciliation.RunRecord, error)
}

// Config holds the reconciliation scheduler settings
type Config struct {
	// Cron is a five-field cron expression or a descriptor such as "@every 30m"
	Cron string
	// Timeout bounds a single scheduled run
	Timeout time.Duration
}

// Scheduler starts reconciliation runs on a cron schedule.
// A tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	executor RunExecutor
	config   Config
	logger   *zap.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	running  bool
	stopOnce sync.Once
}

// New creates a scheduler; Start must be called to register the job
func New(cfg Config, executor RunExecutor, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Minute
	}
	logger = logger.Named("scheduler")

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		executor: executor,
		config:   cfg,
		logger:   logger,
		baseCtx:  context.Background(),
	}
}

// Start registers the reconciliation job and starts the cron loop.
// The scheduler stops when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Cron, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.config.Cron, err)
	}

	s.baseCtx = ctx
	s.running = true
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("cron", s.config.Cron), zap.Duration("timeout", s.config.Timeout))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the cron loop and waits for a running job to finish. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Scheduler stopping")
		<-s.cron.Stop().Done()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("Scheduler stopped")
	})
}

// NextRun returns when the job fires next, or the zero time if it is not scheduled
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(base), s.config.Timeout)
	defer cancel()

	record, err := s.executor.Execute(ctx, reconciliation.RunTriggerSchedule)
	switch {
	case errors.Is(err, reconciliation.ErrRunInProgress):
		s.logger.Info("Scheduled run skipped, another run holds the lock")
	case err != nil && record != nil:
		s.logger.Warn("Scheduled run failed", zap.String("run_id", record.ID.String()), zap.Error(err))
	case err != nil:
		s.logger.Error("Scheduled run could not start", zap.Error(err))
	default:
		s.logger.Info("Scheduled run finished", zap.String("run_id", record.ID.String()))
	}
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
