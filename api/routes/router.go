package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devmarket/ledger-core/api/controllers"
	accountcontrollers "github.com/devmarket/ledger-core/api/controllers/accounts"
	admincontrollers "github.com/devmarket/ledger-core/api/controllers/admin"
	paymentcontrollers "github.com/devmarket/ledger-core/api/controllers/payments"
	purchasecontrollers "github.com/devmarket/ledger-core/api/controllers/purchases"
	webhookcontrollers "github.com/devmarket/ledger-core/api/controllers/webhooks"
	withdrawalcontrollers "github.com/devmarket/ledger-core/api/controllers/withdrawals"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/gateway"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/internal/payments"
	"github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/redis"
)

// Services bundles the domain services the HTTP surface exposes.
type Services struct {
	Ledger         ledger.Service
	PaymentMethods paymentmethods.Service
	Payments       payments.Service
	Gateway        gateway.Service
	Escrow         escrow.Service
	Withdrawals    withdrawals.Service
	Reconciler     admincontrollers.Reconciler
}

// Infra carries the shared clients routes and middleware depend on.
type Infra struct {
	DB          controllers.Pinger
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		infra.HTTPMetrics.Middleware,
	)

	var (
		idempotencyStore redis.IdempotencyStore
		readyDeps        = map[string]controllers.Pinger{"database": infra.DB}
	)
	if infra.Redis != nil {
		idempotencyStore = infra.Redis
		readyDeps["redis"] = infra.Redis
	}

	rateLimit := func(name string, window time.Duration, limit int) func(http.Handler) http.Handler {
		if infra.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(middleware.NewRateLimitPolicy(name, window, limit), infra.Redis, logg)
	}
	initiateLimit := rateLimit("payment-initiate", cfg.RateLimit.InitiateWindow, cfg.RateLimit.InitiateLimit)
	withdrawalLimit := rateLimit("withdrawal-request", cfg.RateLimit.WithdrawalWindow, cfg.RateLimit.WithdrawalLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if infra.Metrics != nil {
		r.Handle("/metrics", infra.Metrics)
	}

	r.Get("/api/v1/payments/methods", paymentcontrollers.ListMethods(svc.PaymentMethods, logg))
	r.Post("/api/v1/webhooks/mirpay", webhookcontrollers.MirPayWebhook(svc.Gateway, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/purchases", func(r chi.Router) {
				r.Post("/", purchasecontrollers.Create(svc.Escrow, logg))
				r.Get("/", purchasecontrollers.List(svc.Escrow, logg))
				r.Get("/{id}", purchasecontrollers.Get(svc.Escrow, logg))
				r.Post("/{id}/report", purchasecontrollers.Report(svc.Escrow, logg))
			})

			r.With(initiateLimit).
				Post("/payments/initiate", paymentcontrollers.Initiate(svc.Payments, logg))
			r.Post("/payments/verify", paymentcontrollers.Verify(svc.Payments, logg))

			r.Get("/balance", accountcontrollers.Balance(svc.Ledger, cfg.Ledger.Currency, logg))
			r.Get("/balance/history", accountcontrollers.History(svc.Ledger, logg))
			r.Get("/transactions", accountcontrollers.ListTransactions(svc.Ledger, logg))
			r.Get("/transactions/{id}", accountcontrollers.GetTransaction(svc.Ledger, logg))

			r.Route("/withdrawals", func(r chi.Router) {
				r.With(withdrawalLimit).
					Post("/", withdrawalcontrollers.Request(svc.Withdrawals, logg))
				r.Get("/", withdrawalcontrollers.List(svc.Withdrawals, logg))
				r.Post("/{id}/cancel", withdrawalcontrollers.Cancel(svc.Withdrawals, logg))
			})
		})

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", admincontrollers.ListWithdrawals(svc.Withdrawals, logg))
				r.Post("/{id}/approve", admincontrollers.ApproveWithdrawal(svc.Withdrawals, logg))
				r.Post("/{id}/processing", admincontrollers.ProcessWithdrawal(svc.Withdrawals, logg))
				r.Post("/{id}/complete", admincontrollers.CompleteWithdrawal(svc.Withdrawals, logg))
				r.Post("/{id}/reject", admincontrollers.RejectWithdrawal(svc.Withdrawals, logg))
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", admincontrollers.ListReports(svc.Escrow, logg))
				r.Post("/{id}/investigate", admincontrollers.InvestigateReport(svc.Escrow, logg))
				r.Post("/{id}/resolve", admincontrollers.ResolveReport(svc.Escrow, logg))
			})

			r.Route("/accounts/{userId}", func(r chi.Router) {
				r.Get("/replay", admincontrollers.ReplayAccount(svc.Ledger, logg))
				r.Post("/reconcile", admincontrollers.ReconcileAccount(svc.Reconciler, logg))
				r.Post("/unfreeze", admincontrollers.UnfreezeAccount(svc.Ledger, cfg.Ledger.Currency, logg))
				r.Post("/deposits", admincontrollers.Deposit(svc.Ledger, logg))
				r.Post("/penalties", admincontrollers.Penalty(svc.Ledger, logg))
			})

			r.Route("/transactions/{id}", func(r chi.Router) {
				r.Post("/force-fail", admincontrollers.ForceFailTransaction(svc.Ledger, logg))
				r.Get("/gateway-logs", admincontrollers.GatewayLogs(svc.Gateway, logg))
			})

			r.Route("/payment-methods", func(r chi.Router) {
				r.Post("/", admincontrollers.CreatePaymentMethod(svc.PaymentMethods, logg))
				r.Patch("/{id}", admincontrollers.UpdatePaymentMethod(svc.PaymentMethods, logg))
				r.Post("/{id}/deactivate", admincontrollers.DeactivatePaymentMethod(svc.PaymentMethods, logg))
			})
		})
	})

	return r
}
