package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/metrics"
	"github.com/devmarket/ledger-core/pkg/pagination"
	"github.com/devmarket/ledger-core/pkg/syncutil"
)

// Service is the only entry point allowed to create transactions, append
// balance entries or change a cached balance.
type Service interface {
	// RunForUser serializes fn with every other ledger write for userID and
	// runs it inside one database transaction.
	RunForUser(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, w *Writer) error) error

	CreateTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error)
	SettleViaBalance(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	SettleViaGateway(ctx context.Context, transactionID uuid.UUID, reference string, response json.RawMessage) (*models.Transaction, error)
	CompleteExternal(ctx context.Context, transactionID uuid.UUID, response json.RawMessage) (*models.Transaction, error)
	Fail(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error)
	Cancel(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error)
	ForceFail(ctx context.Context, transactionID uuid.UUID, adminID uuid.UUID, reason string) (*models.Transaction, error)
	Reverse(ctx context.Context, transactionID uuid.UUID, description string) (*models.Transaction, error)
	Deposit(ctx context.Context, input AdjustmentInput) (*models.Transaction, error)
	Penalty(ctx context.Context, input AdjustmentInput) (*models.Transaction, error)

	Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileReport, error)
	Unfreeze(ctx context.Context, userID, adminID uuid.UUID) error
	ReplayBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	CountFrozenAccounts(ctx context.Context) (int64, error)

	Balance(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.LedgerMetrics
	Currency          string
	Clock             func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
	locks    *syncutil.KeyLock
	currency string
	now      func() time.Time
}

// CreateTransactionInput carries the caller-supplied fields of a new transaction.
type CreateTransactionInput struct {
	UserID       uuid.UUID
	Kind         enums.TransactionKind
	Amount       decimal.Decimal
	Method       *models.PaymentMethod
	PurchaseID   *uuid.UUID
	WithdrawalID *uuid.UUID
	Description  string
	IPAddress    string
	UserAgent    string
}

// AdjustmentInput describes an admin credit or debit outside a purchase.
type AdjustmentInput struct {
	UserID      uuid.UUID
	AdminID     uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// NewService wires the ledger with its repository and transaction runner.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		locks:    &syncutil.KeyLock{},
		currency: currency,
		now:      clock,
	}, nil
}

// DefaultCurrency is the single currency the ledger books in.
const DefaultCurrency = "UZS"

func (s *service) RunForUser(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, w *Writer) error) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	unlock := s.locks.LockUser(userID)
	defer unlock()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(tx, s.writer(tx))
	})
}

func (s *service) writer(tx *gorm.DB) *Writer {
	return &Writer{
		repo:     s.repo.WithTx(tx),
		logg:     s.logg,
		currency: s.currency,
		now:      s.now,
	}
}

// ownerOf resolves the user a transaction belongs to. user_id never changes,
// so reading it before taking the lock is safe.
func (s *service) ownerOf(ctx context.Context, transactionID uuid.UUID) (uuid.UUID, error) {
	if transactionID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	tx, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if tx == nil {
		return uuid.Nil, ErrTransactionNotFound
	}
	return tx.UserID, nil
}

// onTransaction locks the owner of transactionID and runs op with a writer.
func (s *service) onTransaction(ctx context.Context, name string, transactionID uuid.UUID, op func(w *Writer) (*models.Transaction, error)) (*models.Transaction, error) {
	userID, err := s.ownerOf(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTransactionID(ctx, transactionID)

	var result *models.Transaction
	var outcome error
	err = s.RunForUser(ctx, userID, func(_ *gorm.DB, w *Writer) error {
		tx, opErr := op(w)
		result = tx
		if isSignal(opErr) {
			outcome = opErr
			return nil
		}
		return opErr
	})
	if err == nil {
		err = outcome
	}
	s.metrics.Observe(name, err)
	return result, err
}

// isSignal reports whether err is an outcome to return after commit rather
// than a reason to roll back.
func isSignal(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrAlreadyReversed)
}

func (s *service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	var created *models.Transaction
	err := s.RunForUser(ctx, input.UserID, func(_ *gorm.DB, w *Writer) error {
		tx, err := w.CreateTransaction(ctx, input)
		created = tx
		return err
	})
	s.metrics.Observe("create_transaction", err)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) SettleViaBalance(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := s.onTransaction(ctx, "settle_via_balance", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.SettleViaBalance(ctx, transactionID)
	})
	if err != nil {
		return tx, err
	}
	if tx.Status == enums.TransactionStatusFailed {
		s.logg.Warn(s.logg.WithTransactionID(ctx, transactionID), "balance settlement refused: insufficient balance")
		return tx, ErrInsufficientBalance
	}
	return tx, nil
}

func (s *service) SettleViaGateway(ctx context.Context, transactionID uuid.UUID, reference string, response json.RawMessage) (*models.Transaction, error) {
	return s.onTransaction(ctx, "settle_via_gateway", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.AttachGatewayReference(ctx, transactionID, reference, response)
	})
}

func (s *service) CompleteExternal(ctx context.Context, transactionID uuid.UUID, response json.RawMessage) (*models.Transaction, error) {
	return s.onTransaction(ctx, "complete_external", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.CompleteExternal(ctx, transactionID, response)
	})
}

func (s *service) Fail(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	return s.onTransaction(ctx, "fail", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.Fail(ctx, transactionID, reason, nil)
	})
}

func (s *service) Cancel(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	return s.onTransaction(ctx, "cancel", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.Cancel(ctx, transactionID, reason)
	})
}

func (s *service) ForceFail(ctx context.Context, transactionID uuid.UUID, adminID uuid.UUID, reason string) (*models.Transaction, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	tx, err := s.onTransaction(ctx, "force_fail", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.Fail(ctx, transactionID, "forced by admin: "+reason, nil)
	})
	if err == nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"transaction_id": transactionID.String(), "admin_id": adminID.String()})
		s.logg.Warn(logCtx, "transaction force-failed by admin")
	}
	return tx, err
}

func (s *service) Reverse(ctx context.Context, transactionID uuid.UUID, description string) (*models.Transaction, error) {
	refund, err := s.onTransaction(ctx, "reverse", transactionID, func(w *Writer) (*models.Transaction, error) {
		return w.Reverse(ctx, transactionID, description)
	})
	if err == nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"transaction_id": transactionID.String(), "refund_id": refund.ID.String()})
		s.logg.Info(logCtx, "transaction reversed")
	}
	return refund, err
}

func (s *service) Deposit(ctx context.Context, input AdjustmentInput) (*models.Transaction, error) {
	return s.adjust(ctx, "deposit", input, func(w *Writer) (*models.Transaction, error) {
		return w.Adjust(ctx, input, enums.TransactionKindDeposit)
	})
}

func (s *service) Penalty(ctx context.Context, input AdjustmentInput) (*models.Transaction, error) {
	return s.adjust(ctx, "penalty", input, func(w *Writer) (*models.Transaction, error) {
		return w.Adjust(ctx, input, enums.TransactionKindPenalty)
	})
}

func (s *service) adjust(ctx context.Context, name string, input AdjustmentInput, op func(w *Writer) (*models.Transaction, error)) (*models.Transaction, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	var result *models.Transaction
	err := s.RunForUser(ctx, input.UserID, func(_ *gorm.DB, w *Writer) error {
		tx, err := op(w)
		result = tx
		return err
	})
	s.metrics.Observe(name, err)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":        input.UserID.String(),
		"admin_id":       input.AdminID.String(),
		"transaction_id": result.ID.String(),
		"amount":         input.Amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "admin balance adjustment recorded: "+name)
	return result, nil
}
