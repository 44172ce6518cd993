package withdrawals

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	withdrawalsvc "github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type requestBody struct {
	Amount        decimal.Decimal   `json:"amount" validate:"money"`
	PayoutMethod  string            `json:"payout_method" validate:"required"`
	PayoutDetails map[string]string `json:"payout_details" validate:"required,min=1"`
}

// Request reserves the amount from the caller's balance and opens a
// pending withdrawal.
func Request(svc withdrawalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload requestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePayoutMethod(payload.PayoutMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout_method"))
			return
		}

		withdrawal, err := svc.Request(r.Context(), withdrawalsvc.RequestInput{
			UserID:        userID,
			Amount:        payload.Amount,
			PayoutMethod:  method,
			PayoutDetails: payload.PayoutDetails,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.FromWithdrawal(withdrawal))
	}
}

// List pages through the caller's withdrawals.
func List(svc withdrawalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"withdrawals": dto.FromWithdrawals(page.Withdrawals),
			"next_cursor": page.NextCursor,
		})
	}
}

// Cancel withdraws a pending request and releases its reserve.
func Cancel(svc withdrawalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := svc.Cancel(r.Context(), id, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromWithdrawal(withdrawal))
	}
}
