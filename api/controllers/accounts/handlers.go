package accounts

import (
	"net/http"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/logger"
)

// Balance returns the caller's cached balance. A user with no ledger
// activity sees a zero balance.
func Balance(svc ledger.Service, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromAccount(account, currency))
	}
}

// History pages through the caller's balance log, newest entry first.
func History(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.History(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":     dto.FromBalanceEntries(page.Entries),
			"next_cursor": page.NextCursor,
		})
	}
}

// ListTransactions pages through the caller's transactions.
func ListTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.ListTransactions(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": dto.FromTransactions(page.Transactions),
			"next_cursor":  page.NextCursor,
		})
	}
}

// GetTransaction returns one transaction. Another user's id reads as not found.
func GetTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tx, err := svc.GetTransaction(r.Context(), txID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tx.UserID != userID {
			responses.WriteError(r.Context(), logg, w, ledger.ErrTransactionNotFound)
			return
		}
		responses.WriteSuccess(w, dto.FromTransaction(tx))
	}
}
