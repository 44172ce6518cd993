package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/ledger-core/internal/gateway"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type stubGateway struct {
	gateway.Service
	handle func(ctx context.Context, input gateway.WebhookInput) (*gateway.WebhookResult, error)
}

func (s *stubGateway) HandleWebhook(ctx context.Context, input gateway.WebhookInput) (*gateway.WebhookResult, error) {
	return s.handle(ctx, input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestMirPayWebhookPassesRawBodyAndSignature(t *testing.T) {
	txID := uuid.New()
	body := `{"payid":"p-1","status":"success"}`
	var got gateway.WebhookInput
	svc := &stubGateway{
		handle: func(_ context.Context, input gateway.WebhookInput) (*gateway.WebhookResult, error) {
			got = input
			return &gateway.WebhookResult{Outcome: "completed", TransactionID: &txID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mirpay", strings.NewReader(body))
	req.Header.Set(gateway.SignatureHeader, "abc123")
	rec := httptest.NewRecorder()
	MirPayWebhook(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, string(got.Body))
	assert.Equal(t, "abc123", got.Signature)
	assert.Equal(t, "abc123", got.Headers[strings.ToLower(gateway.SignatureHeader)])
	assert.Contains(t, rec.Body.String(), txID.String())
}

func TestMirPayWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubGateway{
		handle: func(context.Context, gateway.WebhookInput) (*gateway.WebhookResult, error) {
			return nil, gateway.ErrInvalidSignature
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mirpay", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	MirPayWebhook(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
