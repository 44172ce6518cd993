package payments

import (
	"errors"
	"net/http"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/middleware"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/paymentmethods"
	paymentsvc "github.com/devmarket/ledger-core/internal/payments"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type initiateRequest struct {
	PurchaseID      string `json:"purchase_id" validate:"required,uuid"`
	PaymentMethodID string `json:"payment_method_id" validate:"required,uuid"`
}

type initiateResponse struct {
	Transaction *dto.Transaction `json:"transaction"`
	PaymentURL  string           `json:"payment_url,omitempty"`
	PayID       string           `json:"payid,omitempty"`
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid"`
}

type verifyResponse struct {
	Status      string           `json:"status"`
	Transaction *dto.Transaction `json:"transaction"`
}

// ListMethods returns the active payment channels.
func ListMethods(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"methods": dto.FromPaymentMethods(methods)})
	}
}

// Initiate starts payment of a pending purchase. Balance payments settle
// synchronously; gateway payments return the checkout URL.
func Initiate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchaseID, err := validators.ParseUUID("purchase_id", payload.PurchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methodID, err := validators.ParseUUID("payment_method_id", payload.PaymentMethodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), paymentsvc.InitiateInput{
			BuyerID:         buyerID,
			PurchaseID:      purchaseID,
			PaymentMethodID: methodID,
			IPAddress:       middleware.ClientIP(r),
			UserAgent:       validators.SanitizeString(r.UserAgent(), 512),
		})
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) && result != nil && result.Transaction != nil {
				err = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance").
					WithDetails(map[string]any{"transaction_id": result.Transaction.ID.String()})
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, initiateResponse{
			Transaction: dto.FromTransaction(result.Transaction),
			PaymentURL:  result.PaymentURL,
			PayID:       result.PayID,
		})
	}
}

// Verify polls the gateway for a pending transaction owned by the caller.
func Verify(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txID, err := validators.ParseUUID("transaction_id", payload.TransactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verification, err := svc.Verify(r.Context(), buyerID, txID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Status:      verification.Status,
			Transaction: dto.FromTransaction(verification.Transaction),
		})
	}
}
