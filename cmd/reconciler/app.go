package main

import (
	"context"
	"fmt"
	"io"
	"os"

	appreconciliation "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/event"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// app holds the wired components of one CLI invocation
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *persistence.Database
	bus      *event.InMemoryEventBus
	cache    reconciliation.SuggestionCache
	logs     *telemetry.LoggerProvider
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	profiler *telemetry.Profiler
	importer importer
	service  *appreconciliation.Service
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.initTelemetry(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	log = a.log

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log),
		persistence.WithLogLevel(logger.MapGormLogLevel(cfg.Log.Level)),
	)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		DBSystem:           dbSystem(cfg.Database.Driver),
		SlowQueryThreshold: cfg.Database.SlowQuery,
	}, log); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("register database tracing: %w", err)
	}
	// postgres schemas are owned by cmd/migrate
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}

	suggestions, err := cache.NewSuggestionCacheFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create suggestion cache: %w", err)
	}
	a.cache = suggestions

	a.bus = event.NewInMemoryEventBus(log)
	a.bus.Subscribe(event.NewAuditLogHandler(log))
	if err := a.bus.Start(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("start event bus: %w", err)
	}

	metrics, err := telemetry.NewReconciliationMetrics(a.meter.Meter("reconciler"))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	settings, err := cfg.Reconciliation.Settings()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	engine := reconciliation.NewMatchDecisionEngine(
		reconciliation.WithParallelism(cfg.Reconciliation.ParallelThreshold, cfg.Worker.MaxParallelism),
	)

	a.importer = importer{
		accounts:     persistence.NewGormAccountRepository(db.DB),
		statements:   persistence.NewGormStatementRepository(db.DB),
		transactions: persistence.NewGormTransactionRepository(db.DB),
	}
	a.service = appreconciliation.NewService(appreconciliation.Repositories{
		Accounts:        a.importer.accounts,
		Statements:      a.importer.statements,
		Transactions:    a.importer.transactions,
		Matches:         persistence.NewGormMatchRepository(db.DB),
		Reconciliations: persistence.NewGormReconciliationRepository(db.DB),
		UnitOfWork:      persistence.NewGormUnitOfWork(db.DB),
	},
		appreconciliation.WithEngine(engine),
		appreconciliation.WithSuggestionCache(suggestions),
		appreconciliation.WithEventPublisher(a.bus),
		appreconciliation.WithMetrics(metrics),
		appreconciliation.WithLogger(log),
		appreconciliation.WithDefaultSettings(settings),
		appreconciliation.WithWindowPadding(cfg.Reconciliation.DateWindowPaddingDays),
	)
	return a, nil
}

func (a *app) initTelemetry(ctx context.Context) error {
	cfg := a.cfg
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, a.log)
	if err != nil {
		return fmt.Errorf("init log export: %w", err)
	}
	a.logs = lp
	a.log = lp.Bridge(a.log, logger.ParseLevel(cfg.Log.Level))

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tp

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, a.log)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	a.meter = mp

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, a.log)
	if err != nil {
		return fmt.Errorf("init profiler: %w", err)
	}
	a.profiler = profiler
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}
	return nil
}

// close releases everything newApp acquired; safe on a partially built app
func (a *app) close(ctx context.Context) {
	if a.bus != nil {
		if err := a.bus.Stop(ctx); err != nil {
			a.log.Warn("Error stopping event bus", zap.Error(err))
		}
		published, failed := a.bus.Stats()
		a.log.Debug("Event bus stopped", zap.Int64("published", published), zap.Int64("failed", failed))
	}
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn("Error closing suggestion cache", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Error closing database", zap.Error(err))
		}
	}
	if a.profiler != nil {
		_ = a.profiler.Stop()
	}
	if a.meter != nil {
		if err := a.meter.Shutdown(ctx); err != nil {
			a.log.Warn("Error shutting down meter provider", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("Error shutting down tracer provider", zap.Error(err))
		}
	}
	if a.logs != nil {
		_ = a.log.Sync()
		if err := a.logs.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down log export: %v\n", err)
		}
	}
}

func dbSystem(driver string) string {
	if driver == "postgres" {
		return "postgresql"
	}
	return driver
}
