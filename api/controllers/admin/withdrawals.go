package admin

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/withdrawals"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type notesBody struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type reasonBody struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ListWithdrawals returns the withdrawal queue for one status, pending by default.
func ListWithdrawals(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := enums.WithdrawalStatusPending
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseWithdrawalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = parsed
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListByStatus(r.Context(), status, params)
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

func ApproveWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalAction(logg, func(r *http.Request, ids actionIDs) (*models.WithdrawalRequest, error) {
		var payload notesBody
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Approve(r.Context(), ids.target, ids.admin, payload.Notes)
	})
}

func ProcessWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalAction(logg, func(r *http.Request, ids actionIDs) (*models.WithdrawalRequest, error) {
		return svc.MarkProcessing(r.Context(), ids.target, ids.admin)
	})
}

func CompleteWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalAction(logg, func(r *http.Request, ids actionIDs) (*models.WithdrawalRequest, error) {
		return svc.Complete(r.Context(), ids.target, ids.admin)
	})
}

func RejectWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return withdrawalAction(logg, func(r *http.Request, ids actionIDs) (*models.WithdrawalRequest, error) {
		var payload reasonBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), ids.target, ids.admin, payload.Reason)
	})
}

func withdrawalAction(logg *logger.Logger, fn func(*http.Request, actionIDs) (*models.WithdrawalRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := fn(r, ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromWithdrawal(withdrawal))
	}
}

type actionIDs struct {
	admin  uuid.UUID
	target uuid.UUID
}

func resolveIDs(r *http.Request, param string) (actionIDs, error) {
	adminID, err := middleware.CallerID(r.Context())
	if err != nil {
		return actionIDs{}, err
	}
	target, err := validators.ParseUUIDParam(r, param)
	if err != nil {
		return actionIDs{}, err
	}
	return actionIDs{admin: adminID, target: target}, nil
}
