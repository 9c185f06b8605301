package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	reconapp "github.com/erp/shipcheck/internal/application/reconciliation"
	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/cache"
	"github.com/erp/shipcheck/internal/infrastructure/config"
	"github.com/erp/shipcheck/internal/infrastructure/console"
	"github.com/erp/shipcheck/internal/infrastructure/fulfillment"
	"github.com/erp/shipcheck/internal/infrastructure/persistence"
	"github.com/erp/shipcheck/internal/infrastructure/sheets"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
	"github.com/erp/shipcheck/internal/infrastructure/webhook"
)

// services holds the assembled run service and everything that must be closed after it
type services struct {
	runs    *reconapp.RunService
	repo    *persistence.RunRecordRepository
	meters  *telemetry.MeterProvider
	tracer  *telemetry.TracerProvider
	// log also exports to the collector when log export is enabled
	log     *zap.Logger
	closers []func() error
}

func (r *services) Close(log *zap.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn("Failed to release resource", zap.Error(err))
		}
	}
}

func schemaFromConfig(cfg *config.LedgerConfig) reconciliation.Schema {
	return reconciliation.Schema{
		MarketOrderIDColumn: cfg.MarketOrderIDColumn,
		StoreOrderIDColumn:  cfg.StoreOrderIDColumn,
		OrderStatusColumn:   cfg.OrderStatusColumn,
		ReviewStateColumn:   cfg.ReviewStateColumn,
		StatusShipping:      cfg.StatusShipping,
		StatusDelivered:     cfg.StatusDelivered,
		ReviewNeeded:        cfg.ReviewNeeded,
	}
}

// pacer returns a limiter allowing one call per interval; zero means unpaced
func pacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// openHistory opens the run history database, or returns nil when it is disabled
func openHistory(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}
	db, err := persistence.NewDatabase(&cfg.Database, cfg.Log.Level, log)
	if err != nil {
		return nil, err
	}
	log.Info("Run history database ready", zap.String("driver", cfg.Database.Driver))
	return db, nil
}

func newRunLock(ctx context.Context, cfg *config.Config, log *zap.Logger) (reconciliation.RunLock, func() error, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryRunLock(), func() error { return nil }, nil
	}
	lock, err := cache.NewRedisRunLock(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using Redis run lock", zap.String("addr", cfg.Redis.Addr()))
	return lock, lock.Close, nil
}

// startTelemetry starts the trace, log and metric pipelines. Each is a no-op when
// telemetry is disabled; log export additionally needs telemetry.export_logs.
func (r *services) startTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var err error
	r.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, func() error {
		return r.tracer.Shutdown(context.Background())
	})

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.ExportLogs,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, func() error {
		return logs.Shutdown(context.Background())
	})
	r.log = logs.Bridge(log)

	r.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, func() error {
		return r.meters.Shutdown(context.Background())
	})
	return nil
}

// buildServices wires every collaborator of a reconciliation run
func buildServices(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *services, err error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}
	schema := schemaFromConfig(&cfg.Ledger)
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	rt := &services{}
	defer func() {
		if err != nil {
			rt.Close(log)
		}
	}()

	if err := rt.startTelemetry(ctx, cfg, log); err != nil {
		return nil, err
	}
	log = rt.log

	credentials, err := sheets.LoadCredentials(cfg.Ledger.CredentialsFile, cfg.Ledger.CredentialsJSON)
	if err != nil {
		return nil, err
	}
	ledger, err := sheets.New(ctx, credentials, sheets.Config{
		SpreadsheetID: cfg.Ledger.SpreadsheetID,
		Retry: sheets.RetryConfig{
			MaxRetries:      cfg.Ledger.MaxRetries,
			InitialInterval: cfg.Ledger.InitialInterval,
			MaxInterval:     cfg.Ledger.MaxInterval,
		},
	}, log)
	if err != nil {
		return nil, err
	}

	provider, err := fulfillment.NewClient(fulfillment.Config{
		Endpoint:        cfg.Fulfillment.Endpoint,
		APIKey:          cfg.Fulfillment.APIKey,
		Timeout:         cfg.Fulfillment.Timeout,
		MaxResponseSize: cfg.Fulfillment.MaxBodyBytes,
	}, log)
	if err != nil {
		return nil, err
	}

	var notifier reconciliation.Notifier
	if cfg.Webhook.URL != "" {
		client, err := webhook.NewClient(webhook.Config{URL: cfg.Webhook.URL, Timeout: cfg.Webhook.Timeout}, log)
		if err != nil {
			return nil, err
		}
		notifier = webhook.NewNotifier(client)
	} else {
		log.Warn("Escalation webhook not configured, manual-processing notifications are disabled")
	}

	var alerts reconciliation.AlertSink
	if cfg.Alert.URL != "" {
		client, err := webhook.NewClient(webhook.Config{URL: cfg.Alert.URL, Timeout: cfg.Alert.Timeout}, log)
		if err != nil {
			return nil, err
		}
		alerts = webhook.NewAlertSink(client, cfg.App.Name)
	}

	browser, err := console.New(console.Config{
		LoginURL:     cfg.Console.LoginURL,
		OrdersURL:    cfg.Console.OrdersURL,
		DashboardURL: cfg.Console.DashboardURL,
		Username:     cfg.Console.Username,
		Password:     cfg.Console.Password,
		RemoteURL:    cfg.Console.RemoteURL,
		Headless:     cfg.Console.Headless,
		NoSandbox:    cfg.Console.NoSandbox,
		UserDataDir:  cfg.Console.UserDataDir,
		Timeout:      cfg.Console.Timeout,
		ScrapeWait:   cfg.Console.ScrapeWait,
		DialogWait:   cfg.Console.DialogWait,
		LoginSettle:  cfg.Console.LoginSettle,
	}, log)
	if err != nil {
		return nil, err
	}

	engine := reconapp.NewEngine(provider, reconapp.EngineConfig{
		Schema:            schema,
		LookupConcurrency: cfg.Engine.LookupConcurrency,
	}, log.Named("engine"))
	escalation := reconapp.NewEscalationHandler(ledger, notifier, reconapp.EscalationHandlerConfig{
		Schema:      schema,
		ManualSheet: cfg.Ledger.ManualSheet,
	}, log.Named("escalation"))
	synchronizer := reconapp.NewSynchronizer(ledger, reconapp.SynchronizerConfig{
		Schema:       schema,
		OrderSheet:   cfg.Ledger.OrderSheet,
		WritePacer:   pacer(cfg.Sync.WriteInterval),
		ConfirmPacer: pacer(cfg.Sync.ConfirmInterval),
	}, log.Named("sync"))
	orchestrator := reconapp.NewOrchestrator(browser, ledger, engine, escalation, synchronizer, alerts,
		reconapp.OrchestratorConfig{OrderSheet: cfg.Ledger.OrderSheet}, log.Named("orchestrator"))

	lock, closeLock, err := newRunLock(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeLock)

	db, err := openHistory(cfg, log)
	if err != nil {
		return nil, err
	}
	var repo reconciliation.RunRepository
	if db != nil {
		rt.closers = append(rt.closers, db.Close)
		if rt.tracer.IsEnabled() {
			if err := db.EnableTracing(rt.tracer.Provider(), cfg.Database.Driver); err != nil {
				return nil, err
			}
		}
		rt.repo = persistence.NewRunRecordRepository(db.DB)
		repo = rt.repo
	}

	metrics, err := telemetry.NewReconciliationMetrics(rt.meters.Meter("shipcheck"))
	if err != nil {
		return nil, err
	}

	rt.runs = reconapp.NewRunService(orchestrator, lock, repo, metrics, reconapp.RunServiceConfig{
		LockKey:        cfg.Scheduler.LockKey,
		LockTTL:        cfg.Scheduler.LockTTL,
		TracerProvider: rt.tracer.Provider(),
	}, log.Named("runs"))
	return rt, nil
}

// exitError reports a run failure without repeating the whole error chain
func exitError(record *reconciliation.RunRecord, err error) error {
	if record == nil || !errors.Is(err, reconciliation.ErrRunFailed) {
		return err
	}
	return fmt.Errorf("run %s failed: %w", record.ID, err)
}
