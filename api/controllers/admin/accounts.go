package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/logger"
)

// Reconciler replays one account's history against its cached balance.
type Reconciler interface {
	ReconcileUser(ctx context.Context, userID uuid.UUID) (*ledger.ReconcileReport, error)
}

type adjustmentBody struct {
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Description string          `json:"description" validate:"required,max=500"`
}

func ReconcileAccount(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ReconcileUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ReplayAccount reports whether the cached balance matches the balance log.
// Unlike ReconcileAccount it never freezes the account.
func ReplayAccount(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		replayed, err := svc.ReplayBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewBalanceReplay(account, replayed))
	}
}

// UnfreezeAccount lifts a reconciliation freeze. It fails while the cached
// balance still disagrees with the replayed history.
func UnfreezeAccount(svc ledger.Service, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Unfreeze(r.Context(), ids.target, ids.admin); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Balance(r.Context(), ids.target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromAccount(account, currency))
	}
}

func Deposit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustment(logg, svc.Deposit)
}

func Penalty(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustment(logg, svc.Penalty)
}

func adjustment(logg *logger.Logger, apply func(context.Context, ledger.AdjustmentInput) (*models.Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustmentBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := apply(r.Context(), ledger.AdjustmentInput{
			UserID:      ids.target,
			AdminID:     ids.admin,
			Amount:      payload.Amount,
			Description: validators.SanitizeString(payload.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.FromTransaction(txn))
	}
}
