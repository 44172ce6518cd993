package webhooks

import (
	"io"
	"net/http"
	"strings"

	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/internal/gateway"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

const maxWebhookBody = 256 << 10

// MirPayWebhook verifies and applies a gateway status callback. Duplicate
// deliveries and unknown payments are acknowledged with 200 so MirPay stops
// retrying them.
func MirPayWebhook(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		headers := make(map[string]string, len(r.Header))
		for name, values := range r.Header {
			headers[strings.ToLower(name)] = strings.Join(values, ",")
		}

		result, err := svc.HandleWebhook(ctx, gateway.WebhookInput{
			Body:      body,
			Signature: r.Header.Get(gateway.SignatureHeader),
			Headers:   headers,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
