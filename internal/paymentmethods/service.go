package paymentmethods

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

var (
	ErrInvalidPaymentMethod = pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	ErrAmountOutOfBounds    = pkgerrors.New(pkgerrors.CodeValidation, "amount out of bounds")
)

// Default bounds applied when an admin creates a method without explicit values.
var (
	DefaultCommissionRate = decimal.RequireFromString("0.0300")
	DefaultMinAmount      = decimal.RequireFromString("1000.00")
	DefaultMaxAmount      = decimal.RequireFromString("50000000.00")
)

// Service is the read-mostly catalog of payment channels.
type Service interface {
	ListActive(ctx context.Context) ([]models.PaymentMethod, error)
	Resolve(ctx context.Context, methodID uuid.UUID, amount decimal.Decimal) (*models.PaymentMethod, error)
	Create(ctx context.Context, input CreateInput) (*models.PaymentMethod, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PaymentMethod, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
}

// CreateInput describes a new payment channel. Nil bounds take the defaults.
type CreateInput struct {
	Name           string
	MethodType     enums.PaymentMethodType
	CommissionRate *decimal.Decimal
	MinAmount      *decimal.Decimal
	MaxAmount      *decimal.Decimal
	Description    string
}

// UpdateInput changes a method. Rate changes only affect future transactions.
type UpdateInput struct {
	CommissionRate *decimal.Decimal
	MinAmount      *decimal.Decimal
	MaxAmount      *decimal.Decimal
	IsActive       *bool
	Description    *string
}

type service struct {
	repo Repository
}

// NewService wires the registry with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment methods")
	}
	return methods, nil
}

func (s *service) Resolve(ctx context.Context, methodID uuid.UUID, amount decimal.Decimal) (*models.PaymentMethod, error) {
	if methodID == uuid.Nil {
		return nil, ErrInvalidPaymentMethod
	}
	method, err := s.repo.FindByID(ctx, methodID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment method")
	}
	if err := CheckAmount(method, amount); err != nil {
		return nil, err
	}
	return method, nil
}

// CheckAmount validates that method is usable and amount lies within its bounds.
func CheckAmount(method *models.PaymentMethod, amount decimal.Decimal) error {
	if method == nil || !method.IsActive {
		return ErrInvalidPaymentMethod
	}
	if amount.LessThan(method.MinAmount) || amount.GreaterThan(method.MaxAmount) {
		return ErrAmountOutOfBounds
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PaymentMethod, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.MethodType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid method type")
	}

	method := &models.PaymentMethod{
		Name:           name,
		MethodType:     input.MethodType,
		CommissionRate: valueOr(input.CommissionRate, DefaultCommissionRate),
		MinAmount:      valueOr(input.MinAmount, DefaultMinAmount),
		MaxAmount:      valueOr(input.MaxAmount, DefaultMaxAmount),
		IsActive:       true,
		Description:    strings.TrimSpace(input.Description),
	}
	if err := validateBounds(method.CommissionRate, method.MinAmount, method.MaxAmount); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, method); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment method name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment method")
	}
	return method, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PaymentMethod, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment method")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
	}

	rate := valueOr(input.CommissionRate, current.CommissionRate)
	min := valueOr(input.MinAmount, current.MinAmount)
	max := valueOr(input.MaxAmount, current.MaxAmount)
	if err := validateBounds(rate, min, max); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"commission_rate": rate,
		"min_amount":      min,
		"max_amount":      max,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment method")
	}
	return s.repo.FindByID(ctx, id)
}

// Deactivate hides a method from checkout. Methods are never deleted because
// past transactions reference them.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{IsActive: &inactive})
}

func validateBounds(rate, min, max decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be within [0, 1)")
	}
	if min.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "min amount must not be negative")
	}
	if max.LessThan(min) {
		return pkgerrors.New(pkgerrors.CodeValidation, "max amount must be at least min amount")
	}
	return nil
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
