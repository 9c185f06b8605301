package reconciliation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

// Runner executes one reconciliation pass; *Orchestrator implements it
type Runner interface {
	Run(ctx context.Context) *reconciliation.RunReport
}

// RunMetrics records the outcome of a run
type RunMetrics interface {
	RecordRun(ctx context.Context, record *reconciliation.RunRecord)
}

// RunServiceConfig configures the RunService
type RunServiceConfig struct {
	// LockKey names the run lock shared by every trigger
	LockKey string
	// LockTTL bounds how long a crashed holder can block other runs
	LockTTL time.Duration
	// TracerProvider starts the run span; nil uses the global provider
	TracerProvider trace.TracerProvider
}

// RunService wraps orchestration runs with a run lock, run history and metrics
type RunService struct {
	runner  Runner
	lock    reconciliation.RunLock
	repo    reconciliation.RunRepository
	metrics RunMetrics
	config  RunServiceConfig
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunService creates a new RunService. repo and metrics may be nil.
func NewRunService(
	runner Runner,
	lock reconciliation.RunLock,
	repo reconciliation.RunRepository,
	metrics RunMetrics,
	cfg RunServiceConfig,
	logger *zap.Logger,
) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "shipcheck:run"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &RunService{
		tracer:  provider.Tracer(telemetry.TracerName),
		runner:  runner,
		lock:    lock,
		repo:    repo,
		metrics: metrics,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute runs one reconciliation pass unless another one holds the run lock.
// The returned record is never nil when err is nil; a failed run is reported through
// record.Error and reconciliation.ErrRunFailed.
func (s *RunService) Execute(ctx context.Context, trigger reconciliation.RunTrigger) (*reconciliation.RunRecord, error) {
	acquired, err := s.lock.TryAcquire(ctx, s.config.LockKey, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		logger.WithLogger(ctx, s.logger).Info("Run skipped, another run is in progress", zap.String("trigger", string(trigger)))
		return nil, reconciliation.ErrRunInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), s.config.LockKey); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	record := reconciliation.NewRunRecord(trigger, s.now())
	ctx, _ = logger.WithRunID(ctx, s.logger, record.ID.String())
	ctx, span := s.tracer.Start(ctx, "reconciliation.run", trace.WithAttributes(
		telemetry.AttrRunID.String(record.ID.String()),
		telemetry.AttrTrigger.String(string(trigger)),
	))
	defer span.End()

	log := logger.WithLogger(ctx, s.logger).With(zap.String("trigger", string(trigger)))
	log.Info("Reconciliation run started")

	report := s.runner.Run(ctx)
	record.Finish(report, s.now())
	telemetry.RecordError(span, report.Err)

	if s.repo != nil {
		if err := s.repo.Save(context.WithoutCancel(ctx), record); err != nil {
			log.Error("Failed to save run record", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordRun(ctx, record)
	}

	log.Info("Reconciliation run finished",
		zap.Duration("duration", record.Duration()),
		zap.Int("scraped", record.Scraped),
		zap.Int("completed", record.Completed),
		zap.Int("escalated", record.Escalated),
		zap.Int("updated_cells", record.UpdatedCells),
		zap.Bool("succeeded", report.Succeeded()),
	)

	if !report.Succeeded() {
		return record, report.Err
	}
	return record, nil
}

// History returns the most recent run records
func (s *RunService) History(ctx context.Context, limit int) ([]reconciliation.RunRecord, error) {
	if s.repo == nil {
		return []reconciliation.RunRecord{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.FindRecent(ctx, limit)
}
