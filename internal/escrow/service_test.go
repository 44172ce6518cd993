package escrow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/db/dbtest"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type harness struct {
	escrow Service
	ledger ledger.Service
	conn   *gorm.DB
	method *models.PaymentMethod
	now    time.Time
	admin  uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "escrow-test", Output: io.Discard})

	h := &harness{conn: conn, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), admin: uuid.New()}
	clock := func() time.Time { return h.now }

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(conn),
		TransactionRunner: db.Wrap(conn),
		Logger:            logg,
		Clock:             clock,
	})
	require.NoError(t, err)

	escrowSvc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Ledger: ledgerSvc,
		Logger: logg,
		Clock:  clock,
	})
	require.NoError(t, err)

	h.method = &models.PaymentMethod{
		Name:           "Platform balance",
		MethodType:     enums.PaymentMethodTypeBalance,
		CommissionRate: decimal.Zero,
		MinAmount:      decimal.NewFromInt(1),
		MaxAmount:      decimal.NewFromInt(50_000_000),
		IsActive:       true,
	}
	require.NoError(t, conn.Create(h.method).Error)

	h.escrow = escrowSvc
	h.ledger = ledgerSvc
	return h
}

// settledPurchase funds buyer, pays amount from the balance and puts the
// purchase into escrow.
func (h *harness) settledPurchase(t *testing.T, buyer uuid.UUID, amount int64) (*models.Purchase, *models.Transaction) {
	t.Helper()
	ctx := context.Background()

	_, err := h.ledger.Deposit(ctx, ledger.AdjustmentInput{UserID: buyer, AdminID: h.admin, Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)

	purchase, err := h.escrow.CreatePurchase(ctx, CreatePurchaseInput{BuyerID: buyer, ProjectID: uuid.New(), Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)

	tx, err := h.ledger.CreateTransaction(ctx, ledger.CreateTransactionInput{
		UserID:     buyer,
		Kind:       enums.TransactionKindPurchase,
		Amount:     decimal.NewFromInt(amount),
		Method:     h.method,
		PurchaseID: &purchase.ID,
	})
	require.NoError(t, err)
	tx, err = h.ledger.SettleViaBalance(ctx, tx.ID)
	require.NoError(t, err)

	require.NoError(t, h.escrow.MarkSettled(ctx, nil, purchase.ID, tx.ID, h.now))
	purchase, err = h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	return purchase, tx
}

func TestMarkSettledStartsVerificationWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	purchase, tx := h.settledPurchase(t, uuid.New(), 80000)

	assert.Equal(t, enums.PurchaseStatusCompleted, purchase.Status)
	require.NotNil(t, purchase.VerificationDeadline)
	assert.True(t, purchase.VerificationDeadline.Equal(h.now.Add(DefaultVerificationWindow)))
	require.NotNil(t, purchase.PaymentReference)
	assert.Equal(t, tx.ID.String(), *purchase.PaymentReference)

	later := h.now.Add(time.Hour)
	require.NoError(t, h.escrow.MarkSettled(ctx, nil, purchase.ID, tx.ID, later))
	again, err := h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.True(t, again.VerificationDeadline.Equal(*purchase.VerificationDeadline))

	err = h.escrow.MarkSettled(ctx, nil, purchase.ID, uuid.New(), later)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestReportAndRefund(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	purchase, tx := h.settledPurchase(t, buyer, 80000)

	account, err := h.ledger.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "0.00", account.Balance.StringFixed(2))

	h.now = h.now.Add(2 * time.Hour)
	report, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "project does not build"})
	require.NoError(t, err)
	assert.Equal(t, enums.ReportStatusPending, report.Status)

	disputed, err := h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusDisputed, disputed.Status)
	settling, err := h.ledger.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusDisputed, settling.Status)

	_, err = h.escrow.StartInvestigation(ctx, report.ID, h.admin, "checking repository")
	require.NoError(t, err)

	resolved, err := h.escrow.ResolveReport(ctx, ResolveReportCommand{
		ReportID:   report.ID,
		AdminID:    h.admin,
		Resolution: enums.ReportStatusResolvedRefund,
		Notes:      "confirmed broken",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReportStatusResolvedRefund, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, h.admin, *resolved.ResolvedBy)

	refunded, err := h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusRefunded, refunded.Status)

	account, err = h.ledger.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "80000.00", account.Balance.StringFixed(2))

	_, err = h.escrow.ResolveReport(ctx, ResolveReportCommand{
		ReportID:   report.ID,
		AdminID:    h.admin,
		Resolution: enums.ReportStatusResolvedRefund,
	})
	assert.True(t, errors.Is(err, ErrReportResolved))

	account, err = h.ledger.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "80000.00", account.Balance.StringFixed(2))
}

func TestReleaseRestoresPurchase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	purchase, tx := h.settledPurchase(t, buyer, 5000)

	report, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "missing docs"})
	require.NoError(t, err)

	_, err = h.escrow.ResolveReport(ctx, ResolveReportCommand{
		ReportID:   report.ID,
		AdminID:    h.admin,
		Resolution: enums.ReportStatusResolvedRelease,
	})
	require.NoError(t, err)

	released, err := h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusCompleted, released.Status)
	assert.True(t, released.IsVerified)

	settling, err := h.ledger.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, settling.Status)
}

func TestDismissLeavesMoneyInPlace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	purchase, _ := h.settledPurchase(t, buyer, 5000)

	report, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "changed my mind"})
	require.NoError(t, err)

	_, err = h.escrow.ResolveReport(ctx, ResolveReportCommand{ReportID: report.ID, AdminID: h.admin, Resolution: enums.ReportStatusDismissed})
	require.NoError(t, err)

	dismissed, err := h.escrow.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusCompleted, dismissed.Status)
	assert.False(t, dismissed.IsVerified)

	account, err := h.ledger.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "0.00", account.Balance.StringFixed(2))
}

func TestFileReportRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	purchase, _ := h.settledPurchase(t, buyer, 5000)

	_, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: uuid.New(), PurchaseID: purchase.ID, Reason: "not mine"})
	assert.True(t, errors.Is(err, ErrNotPurchaseOwner))

	_, err = h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "broken"})
	require.NoError(t, err)

	_, err = h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "still broken"})
	assert.True(t, errors.Is(err, ErrReportExists))

	pending, err := h.escrow.CreatePurchase(ctx, CreatePurchaseInput{BuyerID: buyer, ProjectID: uuid.New(), Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	_, err = h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: pending.ID, Reason: "unpaid"})
	assert.True(t, errors.Is(err, ErrPurchaseNotReportable))
}

func TestFileReportAfterWindowCloses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	purchase, _ := h.settledPurchase(t, buyer, 5000)

	h.now = h.now.Add(DefaultVerificationWindow + time.Minute)
	_, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: purchase.ID, Reason: "too late"})
	assert.True(t, errors.Is(err, ErrVerificationWindowClosed))
}

func TestResolveRejectsNonResolution(t *testing.T) {
	h := newHarness(t)
	_, err := h.escrow.ResolveReport(context.Background(), ResolveReportCommand{
		ReportID:   uuid.New(),
		AdminID:    h.admin,
		Resolution: enums.ReportStatusInvestigating,
	})
	assert.True(t, errors.Is(err, ErrInvalidResolution))
}

func TestVerifyExpiredSkipsReportedPurchases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyer := uuid.New()
	quiet, _ := h.settledPurchase(t, buyer, 5000)
	reported, _ := h.settledPurchase(t, buyer, 5000)

	report, err := h.escrow.FileReport(ctx, FileReportInput{BuyerID: buyer, PurchaseID: reported.ID, Reason: "broken"})
	require.NoError(t, err)
	_, err = h.escrow.ResolveReport(ctx, ResolveReportCommand{ReportID: report.ID, AdminID: h.admin, Resolution: enums.ReportStatusDismissed})
	require.NoError(t, err)

	n, err := h.escrow.VerifyExpired(ctx, h.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = h.escrow.VerifyExpired(ctx, h.now.Add(DefaultVerificationWindow+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	verified, err := h.escrow.GetPurchase(ctx, quiet.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	require.NotNil(t, verified.VerificationNotes)
	assert.Equal(t, AutoVerifiedNote, *verified.VerificationNotes)

	untouched, err := h.escrow.GetPurchase(ctx, reported.ID)
	require.NoError(t, err)
	assert.False(t, untouched.IsVerified)
}
