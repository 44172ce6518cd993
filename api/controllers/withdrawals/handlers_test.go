package withdrawals

import (
	"context"
	"encoding/json"
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
	withdrawalsvc "github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type stubService struct {
	withdrawalsvc.Service
	request func(ctx context.Context, input withdrawalsvc.RequestInput) (*models.WithdrawalRequest, error)
	cancel  func(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error)
}

func (s *stubService) Request(ctx context.Context, input withdrawalsvc.RequestInput) (*models.WithdrawalRequest, error) {
	return s.request(ctx, input)
}

func (s *stubService) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.cancel(ctx, id, userID)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRequestCreatesWithdrawal(t *testing.T) {
	userID := uuid.New()
	var got withdrawalsvc.RequestInput
	svc := &stubService{
		request: func(_ context.Context, input withdrawalsvc.RequestInput) (*models.WithdrawalRequest, error) {
			got = input
			return &models.WithdrawalRequest{
				ID:            uuid.New(),
				UserID:        input.UserID,
				Amount:        input.Amount,
				PayoutMethod:  input.PayoutMethod,
				PayoutDetails: input.PayoutDetails,
				Status:        enums.WithdrawalStatusPending,
			}, nil
		},
	}

	body := `{"amount":"50000","payout_method":"uzcard","payout_details":{"card":"8600"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", strings.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID, "developer"))
	rec := httptest.NewRecorder()

	Request(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, enums.PayoutMethodUzcard, got.PayoutMethod)
	assert.Equal(t, "8600", got.PayoutDetails["card"])

	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Data.Status)
}

func TestRequestRejectsUnknownPayoutMethod(t *testing.T) {
	svc := &stubService{}
	body := `{"amount":"50000","payout_method":"cash","payout_details":{"card":"8600"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", strings.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), "developer"))
	rec := httptest.NewRecorder()

	Request(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	Request(&stubService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelMapsOwnershipError(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		cancel: func(_ context.Context, got, _ uuid.UUID) (*models.WithdrawalRequest, error) {
			assert.Equal(t, id, got)
			return nil, withdrawalsvc.ErrNotOwner
		},
	}

	router := chi.NewRouter()
	router.Post("/api/v1/withdrawals/{id}/cancel", Cancel(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals/"+id.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), "developer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
