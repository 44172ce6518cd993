package admin

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type createMethodBody struct {
	Name           string           `json:"name" validate:"required,max=100"`
	MethodType     string           `json:"method_type" validate:"required"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty" validate:"omitempty,rate"`
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty" validate:"omitempty,money"`
	MaxAmount      *decimal.Decimal `json:"max_amount,omitempty" validate:"omitempty,money"`
	Description    string           `json:"description" validate:"max=500"`
}

type updateMethodBody struct {
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty" validate:"omitempty,rate"`
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty" validate:"omitempty,money"`
	MaxAmount      *decimal.Decimal `json:"max_amount,omitempty" validate:"omitempty,money"`
	IsActive       *bool            `json:"is_active,omitempty"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,max=500"`
}

func CreatePaymentMethod(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createMethodBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methodType, err := enums.ParsePaymentMethodType(payload.MethodType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method_type"))
			return
		}
		method, err := svc.Create(r.Context(), paymentmethods.CreateInput{
			Name:           payload.Name,
			MethodType:     methodType,
			CommissionRate: payload.CommissionRate,
			MinAmount:      payload.MinAmount,
			MaxAmount:      payload.MaxAmount,
			Description:    payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.FromPaymentMethod(method))
	}
}

// UpdatePaymentMethod patches a method. New rates apply to later transactions only.
func UpdatePaymentMethod(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateMethodBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := svc.Update(r.Context(), id, paymentmethods.UpdateInput{
			CommissionRate: payload.CommissionRate,
			MinAmount:      payload.MinAmount,
			MaxAmount:      payload.MaxAmount,
			IsActive:       payload.IsActive,
			Description:    payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromPaymentMethod(method))
	}
}

// DeactivatePaymentMethod removes a method from checkout without touching history.
func DeactivatePaymentMethod(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromPaymentMethod(method))
	}
}
