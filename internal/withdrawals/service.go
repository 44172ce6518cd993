package withdrawals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/pagination"
)

var (
	ErrWithdrawalNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
	ErrBelowMinimum       = pkgerrors.New(pkgerrors.CodeValidation, "amount is below the minimum withdrawal")
	ErrInvalidPayout      = pkgerrors.New(pkgerrors.CodeValidation, "invalid payout method")
	ErrNotOwner           = pkgerrors.New(pkgerrors.CodeForbidden, "only the requester can cancel this withdrawal")
	ErrInvalidTransition  = pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal status transition not allowed")
)

// Defaults used when configuration leaves them unset.
var (
	DefaultCommissionRate = decimal.RequireFromString("0.02")
	DefaultMinAmount      = decimal.NewFromInt(10000)
)

// Service runs seller payouts from request through admin review.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*models.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error)
	Complete(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error)
	Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error)

	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	ListByStatus(ctx context.Context, status enums.WithdrawalStatus, params pagination.Params) (*Page, error)
}

type RequestInput struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	PayoutMethod  enums.PayoutMethod
	PayoutDetails map[string]string
}

type Page struct {
	Withdrawals []models.WithdrawalRequest `json:"withdrawals"`
	NextCursor  string                     `json:"next_cursor,omitempty"`
}

type ServiceParams struct {
	Repo           Repository
	Ledger         ledger.Service
	Logger         *logger.Logger
	CommissionRate decimal.Decimal
	MinAmount      decimal.Decimal
	Clock          func() time.Time
}

type service struct {
	repo      Repository
	ledger    ledger.Service
	logg      *logger.Logger
	rate      decimal.Decimal
	minAmount decimal.Decimal
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	rate := params.CommissionRate
	if rate.IsZero() {
		rate = DefaultCommissionRate
	}
	minAmount := params.MinAmount
	if minAmount.IsZero() {
		minAmount = DefaultMinAmount
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		ledger:    params.Ledger,
		logg:      params.Logger,
		rate:      rate,
		minAmount: minAmount,
		now:       clock,
	}, nil
}

// Request records a payout request and reserves the full amount from the
// seller's balance in the same transaction.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error) {
	if !ledger.ValidAmount(input.Amount) {
		return nil, ledger.ErrInvalidAmount
	}
	if input.Amount.LessThan(s.minAmount) {
		return nil, ErrBelowMinimum
	}
	if !input.PayoutMethod.IsValid() {
		return nil, ErrInvalidPayout
	}

	commission := ledger.CommissionFor(input.Amount, s.rate)
	request := &models.WithdrawalRequest{
		UserID:           input.UserID,
		Amount:           input.Amount,
		CommissionAmount: commission,
		NetAmount:        input.Amount.Sub(commission),
		PayoutMethod:     input.PayoutMethod,
		PayoutDetails:    input.PayoutDetails,
		Status:           enums.WithdrawalStatusPending,
	}

	err := s.ledger.RunForUser(ctx, input.UserID, func(tx *gorm.DB, w *ledger.Writer) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create withdrawal request")
		}
		_, err := w.ReserveWithdrawal(ctx, input.UserID, request.ID, input.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":       input.UserID.String(),
		"withdrawal_id": request.ID.String(),
		"amount":        input.Amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "withdrawal requested")
	return request, nil
}

func (s *service) Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*models.WithdrawalRequest, error) {
	updates := s.review(adminID)
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["admin_notes"] = notes
	}
	return s.advance(ctx, id, adminID, enums.WithdrawalStatusApproved, updates)
}

func (s *service) MarkProcessing(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.advance(ctx, id, adminID, enums.WithdrawalStatusProcessing, s.review(adminID))
}

// advance performs a status change that does not move money.
func (s *service) advance(ctx context.Context, id, adminID uuid.UUID, to enums.WithdrawalStatus, updates map[string]any) (*models.WithdrawalRequest, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.repo.Transition(ctx, id, current.Status, to, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update withdrawal")
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	s.logTransition(ctx, id, adminID, to)
	return s.Get(ctx, id)
}

// Complete books the payout transaction. Funds already left the balance at
// request time.
func (s *service) Complete(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.ledger.RunForUser(ctx, current.UserID, func(tx *gorm.DB, w *ledger.Writer) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.Lock(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load withdrawal")
		}
		if locked.Status != enums.WithdrawalStatusProcessing {
			return ErrInvalidTransition
		}
		payout, err := w.RecordWithdrawalPayout(ctx, locked)
		if err != nil {
			return err
		}
		now := s.now()
		ok, err := repo.Transition(ctx, id, enums.WithdrawalStatusProcessing, enums.WithdrawalStatusCompleted, map[string]any{
			"completed_at":          now,
			"payout_transaction_id": payout.ID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete withdrawal")
		}
		if !ok {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, id, adminID, enums.WithdrawalStatusCompleted)
	return s.Get(ctx, id)
}

func (s *service) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	updates := s.review(adminID)
	updates["rejection_reason"] = reason
	if err := s.release(ctx, id, enums.WithdrawalStatusRejected, "rejected: "+reason, updates, nil); err != nil {
		return nil, err
	}
	s.logTransition(ctx, id, adminID, enums.WithdrawalStatusRejected)
	return s.Get(ctx, id)
}

func (s *service) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	owner := func(request *models.WithdrawalRequest) error {
		if request.UserID != userID {
			return ErrNotOwner
		}
		return nil
	}
	if err := s.release(ctx, id, enums.WithdrawalStatusCancelled, "cancelled by requester", map[string]any{}, owner); err != nil {
		return nil, err
	}
	s.logTransition(ctx, id, userID, enums.WithdrawalStatusCancelled)
	return s.Get(ctx, id)
}

// release ends a withdrawal that still holds funds and credits the reserved
// amount back.
func (s *service) release(ctx context.Context, id uuid.UUID, to enums.WithdrawalStatus, reason string, updates map[string]any, check func(*models.WithdrawalRequest) error) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(current); err != nil {
			return err
		}
	}
	return s.ledger.RunForUser(ctx, current.UserID, func(tx *gorm.DB, w *ledger.Writer) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.Lock(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load withdrawal")
		}
		if !locked.Status.HoldsFunds() || !locked.Status.CanTransitionTo(to) {
			return ErrInvalidTransition
		}
		ok, err := repo.Transition(ctx, id, locked.Status, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update withdrawal")
		}
		if !ok {
			return ErrInvalidTransition
		}
		_, err = w.ReleaseWithdrawal(ctx, locked.UserID, locked.ID, locked.Amount, reason)
		return err
	})
}

func (s *service) review(adminID uuid.UUID) map[string]any {
	return map[string]any{
		"processed_by": adminID,
		"processed_at": s.now(),
	}
}

func (s *service) logTransition(ctx context.Context, id, actorID uuid.UUID, to enums.WithdrawalStatus) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"withdrawal_id": id.String(),
		"actor_id":      actorID.String(),
		"status":        to.String(),
	})
	s.logg.Info(logCtx, "withdrawal status changed")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load withdrawal")
	}
	if request == nil {
		return nil, ErrWithdrawalNotFound
	}
	return request, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	return s.page(params, func(cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error) {
		return s.repo.ListByUser(ctx, userID, cursor, limit)
	})
}

func (s *service) ListByStatus(ctx context.Context, status enums.WithdrawalStatus, params pagination.Params) (*Page, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid withdrawal status")
	}
	return s.page(params, func(cursor *pagination.Cursor, limit int) ([]models.WithdrawalRequest, error) {
		return s.repo.ListByStatus(ctx, status, cursor, limit)
	})
}

func (s *service) page(params pagination.Params, fetch func(*pagination.Cursor, int) ([]models.WithdrawalRequest, error)) (*Page, error) {
	rows, next, err := pagination.Collect(params, "list withdrawals", fetch, func(w models.WithdrawalRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
	if err != nil {
		return nil, err
	}
	return &Page{Withdrawals: rows, NextCursor: next}, nil
}
