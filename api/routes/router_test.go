package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/internal/withdrawals"
	pkgauth "github.com/devmarket/ledger-core/pkg/auth"
	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubMethods struct {
	paymentmethods.Service
}

func (stubMethods) ListActive(context.Context) ([]models.PaymentMethod, error) {
	return []models.PaymentMethod{{ID: uuid.New(), Name: "Uzcard", MethodType: enums.PaymentMethodTypeUzcard, IsActive: true}}, nil
}

type stubWithdrawals struct {
	withdrawals.Service
}

func (stubWithdrawals) ListByStatus(context.Context, enums.WithdrawalStatus, pagination.Params) (*withdrawals.Page, error) {
	return &withdrawals.Page{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "dev", Port: "8080"},
		JWT:    config.JWTConfig{Secret: "router-secret", Issuer: "identity"},
		Ledger: config.LedgerConfig{Currency: "UZS"},
	}
}

func newTestRouter(t *testing.T, db stubPinger) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(testConfig(), logg, Infra{
		DB:          db,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     metrics.Handler(reg),
	}, Services{
		PaymentMethods: stubMethods{},
		Withdrawals:    stubWithdrawals{},
	})
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, uuid.New(), role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyFailsWhenDatabaseDown(t *testing.T) {
	router := newTestRouter(t, stubPinger{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPaymentMethodsArePublic(t *testing.T) {
	router := newTestRouter(t, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/methods", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Uzcard")
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router := newTestRouter(t, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/withdrawals", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleDeveloper))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/withdrawals", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, stubPinger{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/health/live"`)
}
