package purchases

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type createRequest struct {
	ProjectID string          `json:"project_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"money"`
}

type reportRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// Create opens a pending purchase for the caller.
func Create(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := validators.ParseUUID("project_id", payload.ProjectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.CreatePurchase(r.Context(), escrow.CreatePurchaseInput{
			BuyerID:   buyerID,
			ProjectID: projectID,
			Amount:    payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.FromPurchase(purchase))
	}
}

// Get returns one of the caller's purchases.
func Get(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchase, err := svc.GetPurchase(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if purchase.BuyerID != buyerID {
			responses.WriteError(r.Context(), logg, w, escrow.ErrPurchaseNotFound)
			return
		}
		responses.WriteSuccess(w, dto.FromPurchase(purchase))
	}
}

// List pages through the caller's purchases, newest first.
func List(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListPurchases(r.Context(), buyerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"purchases":   dto.FromPurchases(page.Purchases),
			"next_cursor": page.NextCursor,
		})
	}
}

// Report files a dispute against a purchase inside its verification window.
func Report(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reportRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.FileReport(r.Context(), escrow.FileReportInput{
			BuyerID:    buyerID,
			PurchaseID: purchaseID,
			Reason:     validators.SanitizeString(payload.Reason, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.FromReport(report))
	}
}
