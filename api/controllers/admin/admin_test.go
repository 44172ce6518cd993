package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func adminRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), "admin"))
}

type stubWithdrawals struct {
	withdrawals.Service
	approve      func(ctx context.Context, id, adminID uuid.UUID, notes string) (*models.WithdrawalRequest, error)
	listByStatus func(ctx context.Context, status enums.WithdrawalStatus, params pagination.Params) (*withdrawals.Page, error)
}

func (s *stubWithdrawals) Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*models.WithdrawalRequest, error) {
	return s.approve(ctx, id, adminID, notes)
}

func (s *stubWithdrawals) ListByStatus(ctx context.Context, status enums.WithdrawalStatus, params pagination.Params) (*withdrawals.Page, error) {
	return s.listByStatus(ctx, status, params)
}

func TestApproveWithdrawalAcceptsEmptyBody(t *testing.T) {
	id := uuid.New()
	svc := &stubWithdrawals{
		approve: func(_ context.Context, got, _ uuid.UUID, notes string) (*models.WithdrawalRequest, error) {
			assert.Equal(t, id, got)
			assert.Empty(t, notes)
			return &models.WithdrawalRequest{ID: got, Status: enums.WithdrawalStatusApproved}, nil
		},
	}
	router := chi.NewRouter()
	router.Post("/withdrawals/{id}/approve", ApproveWithdrawal(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/withdrawals/"+id.String()+"/approve", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
}

func TestApproveWithdrawalMapsTransitionConflict(t *testing.T) {
	svc := &stubWithdrawals{
		approve: func(context.Context, uuid.UUID, uuid.UUID, string) (*models.WithdrawalRequest, error) {
			return nil, withdrawals.ErrInvalidTransition
		},
	}
	router := chi.NewRouter()
	router.Post("/withdrawals/{id}/approve", ApproveWithdrawal(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/withdrawals/"+uuid.NewString()+"/approve", `{"notes":"ok"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListWithdrawalsDefaultsToPending(t *testing.T) {
	var got enums.WithdrawalStatus
	svc := &stubWithdrawals{
		listByStatus: func(_ context.Context, status enums.WithdrawalStatus, _ pagination.Params) (*withdrawals.Page, error) {
			got = status
			return &withdrawals.Page{}, nil
		},
	}
	rec := httptest.NewRecorder()
	ListWithdrawals(svc, testLogger()).ServeHTTP(rec, adminRequest(http.MethodGet, "/withdrawals", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.WithdrawalStatusPending, got)

	rec = httptest.NewRecorder()
	ListWithdrawals(svc, testLogger()).ServeHTTP(rec, adminRequest(http.MethodGet, "/withdrawals?status=bogus", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubEscrow struct {
	escrow.Service
	resolve func(ctx context.Context, cmd escrow.ResolveReportCommand) (*models.ProjectReport, error)
}

func (s *stubEscrow) ResolveReport(ctx context.Context, cmd escrow.ResolveReportCommand) (*models.ProjectReport, error) {
	return s.resolve(ctx, cmd)
}

func TestResolveReportValidatesResolution(t *testing.T) {
	reportID := uuid.New()
	var got escrow.ResolveReportCommand
	svc := &stubEscrow{
		resolve: func(_ context.Context, cmd escrow.ResolveReportCommand) (*models.ProjectReport, error) {
			got = cmd
			return &models.ProjectReport{ID: cmd.ReportID, Status: cmd.Resolution}, nil
		},
	}
	router := chi.NewRouter()
	router.Post("/reports/{id}/resolve", ResolveReport(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/reports/"+reportID.String()+"/resolve", `{"resolution":"resolved_refund","notes":"broken build"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reportID, got.ReportID)
	assert.Equal(t, enums.ReportStatusResolvedRefund, got.Resolution)
	assert.NotEqual(t, uuid.Nil, got.AdminID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/reports/"+reportID.String()+"/resolve", `{"resolution":"pending"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubLedger struct {
	ledger.Service
	deposit  func(ctx context.Context, input ledger.AdjustmentInput) (*models.Transaction, error)
	balance  decimal.Decimal
	replayed decimal.Decimal
}

func (s *stubLedger) Balance(_ context.Context, userID uuid.UUID) (*models.Account, error) {
	return &models.Account{UserID: userID, Balance: s.balance}, nil
}

func (s *stubLedger) ReplayBalance(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return s.replayed, nil
}

func (s *stubLedger) Deposit(ctx context.Context, input ledger.AdjustmentInput) (*models.Transaction, error) {
	return s.deposit(ctx, input)
}

func TestDepositCreditsTargetAccount(t *testing.T) {
	userID := uuid.New()
	var got ledger.AdjustmentInput
	svc := &stubLedger{
		deposit: func(_ context.Context, input ledger.AdjustmentInput) (*models.Transaction, error) {
			got = input
			return &models.Transaction{ID: uuid.New(), UserID: input.UserID, Amount: input.Amount}, nil
		},
	}
	router := chi.NewRouter()
	router.Post("/accounts/{userId}/deposits", Deposit(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/"+userID.String()+"/deposits", `{"amount":"1500.50","description":"  manual top-up  "}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1500.50")))
	assert.Equal(t, "manual top-up", got.Description)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/"+userID.String()+"/deposits", `{"amount":"-5","description":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubReconciler struct {
	report *ledger.ReconcileReport
}

func (s stubReconciler) ReconcileUser(_ context.Context, userID uuid.UUID) (*ledger.ReconcileReport, error) {
	s.report.UserID = userID
	return s.report, nil
}

func TestReconcileAccountReturnsReport(t *testing.T) {
	userID := uuid.New()
	router := chi.NewRouter()
	router.Post("/accounts/{userId}/reconcile", ReconcileAccount(stubReconciler{report: &ledger.ReconcileReport{Frozen: true}}, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/accounts/"+userID.String()+"/reconcile", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
	assert.Contains(t, rec.Body.String(), `"frozen":true`)
}

func TestReplayAccountReportsDrift(t *testing.T) {
	userID := uuid.New()
	svc := &stubLedger{balance: decimal.RequireFromString("1500.00"), replayed: decimal.RequireFromString("1200.00")}
	router := chi.NewRouter()
	router.Get("/accounts/{userId}/replay", ReplayAccount(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodGet, "/accounts/"+userID.String()+"/replay", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"cached_balance":"1500.00"`)
	assert.Contains(t, body, `"replayed_balance":"1200.00"`)
	assert.Contains(t, body, `"matches":false`)

	svc.replayed = svc.balance
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodGet, "/accounts/"+userID.String()+"/replay", ""))
	assert.Contains(t, rec.Body.String(), `"matches":true`)
}
