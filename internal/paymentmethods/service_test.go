package paymentmethods

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/ledger-core/pkg/db/dbtest"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestResolveEnforcesBounds(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	method, err := svc.Create(ctx, CreateInput{Name: "Uzcard", MethodType: enums.PaymentMethodTypeUzcard})
	require.NoError(t, err)
	assert.True(t, method.CommissionRate.Equal(DefaultCommissionRate))

	got, err := svc.Resolve(ctx, method.ID, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, method.ID, got.ID)

	_, err = svc.Resolve(ctx, method.ID, decimal.NewFromInt(999))
	assert.True(t, errors.Is(err, ErrAmountOutOfBounds))

	_, err = svc.Resolve(ctx, method.ID, decimal.RequireFromString("50000000.01"))
	assert.True(t, errors.Is(err, ErrAmountOutOfBounds))
}

func TestResolveRejectsMissingAndInactive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Resolve(ctx, uuid.New(), decimal.NewFromInt(5000))
	assert.True(t, errors.Is(err, ErrInvalidPaymentMethod))

	method, err := svc.Create(ctx, CreateInput{Name: "Click", MethodType: enums.PaymentMethodTypeClick})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, method.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, method.ID, decimal.NewFromInt(5000))
	assert.True(t, errors.Is(err, ErrInvalidPaymentMethod))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, CreateInput{Name: " ", MethodType: enums.PaymentMethodTypeHumo})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	badRate := decimal.NewFromInt(1)
	_, err = svc.Create(ctx, CreateInput{Name: "Humo", MethodType: enums.PaymentMethodTypeHumo, CommissionRate: &badRate})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateInput{Name: "Humo", MethodType: enums.PaymentMethodTypeHumo})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Humo", MethodType: enums.PaymentMethodTypeHumo})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestUpdateRateLeavesBoundsIntact(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	method, err := svc.Create(ctx, CreateInput{Name: "Payme", MethodType: enums.PaymentMethodTypePayme})
	require.NoError(t, err)

	rate := decimal.RequireFromString("0.0150")
	updated, err := svc.Update(ctx, method.ID, UpdateInput{CommissionRate: &rate})
	require.NoError(t, err)
	assert.True(t, updated.CommissionRate.Equal(rate))
	assert.True(t, updated.MinAmount.Equal(DefaultMinAmount))

	lowMax := decimal.NewFromInt(10)
	_, err = svc.Update(ctx, method.ID, UpdateInput{MaxAmount: &lowMax})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeactivateHidesMethodFromCheckout(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	click, err := svc.Create(ctx, CreateInput{Name: "Click", MethodType: enums.PaymentMethodTypeClick})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Humo", MethodType: enums.PaymentMethodTypeHumo})
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(ctx, click.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Humo", active[0].Name)

	_, err = svc.Resolve(ctx, click.ID, decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = svc.Deactivate(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
