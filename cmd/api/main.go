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

	"github.com/devmarket/ledger-core/api/routes"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/gateway"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/internal/payments"
	"github.com/devmarket/ledger-core/internal/reconciliation"
	"github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/migrate"
	"github.com/devmarket/ledger-core/pkg/mirpay"
	"github.com/devmarket/ledger-core/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           ledgerMetrics,
		Currency:          cfg.Ledger.Currency,
	})
	mustBuild(logg, "ledger service", err)

	methodService, err := paymentmethods.NewService(paymentmethods.NewRepository(dbClient.DB()))
	mustBuild(logg, "payment method service", err)

	escrowService, err := escrow.NewService(escrow.ServiceParams{
		Repo:               escrow.NewRepository(dbClient.DB()),
		Ledger:             ledgerService,
		Logger:             logg,
		VerificationWindow: cfg.Ledger.VerificationWindow,
	})
	mustBuild(logg, "escrow service", err)

	mirpayClient, err := mirpay.NewClient(cfg.MirPay)
	mustBuild(logg, "mirpay client", err)
	if mirpayClient.Simulated() {
		logg.Warn(context.Background(), "mirpay client running in simulated mode")
	}

	gatewayService, err := gateway.NewService(gateway.ServiceParams{
		Repo:          gateway.NewRepository(dbClient.DB()),
		Ledger:        ledgerService,
		Client:        mirpayClient,
		Guard:         redisClient,
		Purchases:     escrowService,
		Logger:        logg,
		Metrics:       metrics.NewGatewayMetrics(registry),
		WebhookSecret: cfg.MirPay.WebhookSecret,
	})
	mustBuild(logg, "gateway service", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Methods: methodService,
		Ledger:  ledgerService,
		Escrow:  escrowService,
		Gateway: gatewayService,
		Logger:  logg,
	})
	mustBuild(logg, "payment service", err)

	withdrawalService, err := withdrawals.NewService(withdrawals.ServiceParams{
		Repo:           withdrawals.NewRepository(dbClient.DB()),
		Ledger:         ledgerService,
		Logger:         logg,
		CommissionRate: cfg.Ledger.WithdrawalRate(),
		MinAmount:      cfg.Ledger.MinWithdrawal(),
	})
	mustBuild(logg, "withdrawal service", err)

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Ledger:  ledgerService,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	mustBuild(logg, "reconciliation service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"currency": cfg.Ledger.Currency,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			HTTPMetrics: metrics.NewHTTPMetrics(registry),
			Metrics:     metrics.Handler(registry),
		}, routes.Services{
			Ledger:         ledgerService,
			PaymentMethods: methodService,
			Payments:       paymentService,
			Gateway:        gatewayService,
			Escrow:         escrowService,
			Withdrawals:    withdrawalService,
			Reconciler:     reconciler,
		}),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func mustBuild(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
