package admin

import (
	"net/http"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/gateway"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/logger"
)

// ForceFailTransaction fails a stuck pending or processing transaction and
// releases any balance it reserved.
func ForceFailTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reasonBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.ForceFail(r.Context(), ids.target, ids.admin, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromTransaction(txn))
	}
}

func GatewayLogs(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logs, err := svc.Logs(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"logs": dto.FromGatewayLogs(logs)})
	}
}
