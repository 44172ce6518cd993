package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/devmarket/ledger-core/internal/cron"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/reconciliation"
	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/migrate"
	"github.com/devmarket/ledger-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(promRegistry)
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           ledgerMetrics,
		Currency:          cfg.Ledger.Currency,
	})
	mustBuild(logg, "ledger service", err)

	escrowService, err := escrow.NewService(escrow.ServiceParams{
		Repo:               escrow.NewRepository(dbClient.DB()),
		Ledger:             ledgerService,
		Logger:             logg,
		VerificationWindow: cfg.Ledger.VerificationWindow,
	})
	mustBuild(logg, "escrow service", err)

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Ledger:  ledgerService,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	mustBuild(logg, "reconciliation service", err)

	sweepJob, err := cron.NewVerificationSweepJob(cron.VerificationSweepJobParams{
		Logger: logg,
		Escrow: escrowService,
	})
	mustBuild(logg, "verification sweep job", err)

	reconcileJob, err := cron.NewReconciliationJob(reconciler)
	mustBuild(logg, "reconciliation job", err)

	registry := cron.NewRegistry(sweepJob)
	registry.RegisterEvery(reconcileJob, cfg.Cron.ReconcileEvery)

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	mustBuild(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	mustBuild(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if cfg.Cron.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Cron.MetricsAddr,
			Handler:           metrics.Handler(promRegistry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func mustBuild(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
