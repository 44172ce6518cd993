// Package payments orchestrates buyer checkout across the payment method
// registry, the ledger, escrow and the gateway adapter.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/internal/gateway"
	"github.com/devmarket/ledger-core/internal/ledger"
	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

var (
	ErrPurchaseNotPayable  = pkgerrors.New(pkgerrors.CodeStateConflict, "purchase is not awaiting payment")
	ErrNotTransactionOwner = pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another user")
	ErrPaymentInProgress   = pkgerrors.New(pkgerrors.CodeConflict, "a payment for this purchase is already in progress")
)

// DefaultStaleAttemptAge is how long a pending attempt without a gateway
// payment may sit before a new attempt supersedes it.
const DefaultStaleAttemptAge = 2 * time.Minute

const supersededReason = "superseded by a new payment attempt"

type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	Verify(ctx context.Context, buyerID, transactionID uuid.UUID) (*gateway.Verification, error)
}

type InitiateInput struct {
	BuyerID         uuid.UUID
	PurchaseID      uuid.UUID
	PaymentMethodID uuid.UUID
	IPAddress       string
	UserAgent       string
}

// InitiateResult carries the created transaction and, for gateway methods,
// where to send the buyer.
type InitiateResult struct {
	Transaction *models.Transaction `json:"transaction"`
	PaymentURL  string              `json:"payment_url,omitempty"`
	PayID       string              `json:"payid,omitempty"`
}

type ServiceParams struct {
	Methods paymentmethods.Service
	Ledger  ledger.Service
	Escrow  escrow.Service
	Gateway gateway.Service
	Logger  *logger.Logger

	StaleAttemptAge time.Duration
	Clock           func() time.Time
}

type service struct {
	methods    paymentmethods.Service
	ledger     ledger.Service
	escrow     escrow.Service
	gateway    gateway.Service
	logg       *logger.Logger
	staleAfter time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Methods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method service required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Escrow == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow service required")
	case params.Gateway == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway service required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	staleAfter := params.StaleAttemptAge
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAttemptAge
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		methods:    params.Methods,
		ledger:     params.Ledger,
		escrow:     params.Escrow,
		gateway:    params.Gateway,
		logg:       params.Logger,
		staleAfter: staleAfter,
		now:        clock,
	}, nil
}

// Initiate opens one payment attempt for a pending purchase. Attempts for the
// same purchase are serialized on the buyer's ledger lock: a settled purchase
// is refused, a live attempt is reported as ErrPaymentInProgress and a stale
// attempt that never reached the gateway is cancelled first.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	purchase, err := s.escrow.GetPurchase(ctx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != input.BuyerID {
		return nil, escrow.ErrNotPurchaseOwner
	}
	if purchase.Status != enums.PurchaseStatusPending {
		return nil, ErrPurchaseNotPayable
	}

	method, err := s.methods.Resolve(ctx, input.PaymentMethodID, purchase.Amount)
	if err != nil {
		return nil, err
	}
	internal := method.MethodType.SettlesInternally()

	var tx *models.Transaction
	err = s.ledger.RunForUser(ctx, input.BuyerID, func(db *gorm.DB, w *ledger.Writer) error {
		if err := s.clearAttempts(ctx, w, purchase.ID); err != nil {
			return err
		}
		created, err := w.CreateTransaction(ctx, ledger.CreateTransactionInput{
			UserID:      input.BuyerID,
			Kind:        enums.TransactionKindPurchase,
			Amount:      purchase.Amount,
			Method:      method,
			PurchaseID:  &purchase.ID,
			Description: "Purchase of project " + purchase.ProjectID.String(),
			IPAddress:   input.IPAddress,
			UserAgent:   input.UserAgent,
		})
		if err != nil {
			return err
		}
		tx = created
		if !internal {
			return s.escrow.AttachPaymentReference(ctx, db, purchase.ID, created.ID.String())
		}

		settled, err := w.SettleViaBalance(ctx, created.ID)
		if err != nil {
			return err
		}
		tx = settled
		if settled.Status != enums.TransactionStatusCompleted {
			return nil
		}
		settledAt := s.now()
		if settled.CompletedAt != nil {
			settledAt = *settled.CompletedAt
		}
		return s.escrow.MarkSettled(ctx, db, purchase.ID, settled.ID, settledAt)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"transaction_id": tx.ID.String(),
		"purchase_id":    purchase.ID.String(),
		"method":         method.MethodType.String(),
	})

	if internal {
		if tx.Status == enums.TransactionStatusFailed {
			s.logg.Warn(ctx, "balance payment refused: insufficient balance")
			return &InitiateResult{Transaction: tx}, ledger.ErrInsufficientBalance
		}
		s.logg.Info(ctx, "payment settled from balance")
		return &InitiateResult{Transaction: tx}, nil
	}

	checkout, err := s.gateway.CreatePayment(ctx, tx.ID)
	if err != nil {
		if !errors.Is(err, gateway.ErrPaymentDeclined) {
			// the buyer never saw a payment URL, so the attempt can go
			if _, cancelErr := s.ledger.Cancel(ctx, tx.ID, "gateway payment could not be opened"); cancelErr != nil && !errors.Is(cancelErr, ledger.ErrAlreadyProcessed) {
				s.logg.Error(ctx, "cancel unopened gateway attempt", cancelErr)
			}
		}
		return nil, err
	}
	s.logg.Info(ctx, "payment initiated via gateway")
	return &InitiateResult{Transaction: checkout.Transaction, PaymentURL: checkout.PaymentURL, PayID: checkout.PayID}, nil
}

// clearAttempts inspects earlier attempts for the purchase under the buyer's
// lock. A pending attempt that reached the gateway stays open until the
// gateway reports its outcome.
func (s *service) clearAttempts(ctx context.Context, w *ledger.Writer, purchaseID uuid.UUID) error {
	attempts, err := w.PurchaseAttempts(ctx, purchaseID)
	if err != nil {
		return err
	}
	cutoff := s.now().Add(-s.staleAfter)
	for _, attempt := range attempts {
		switch {
		case attempt.Status.IsSettled():
			if attempt.Status != enums.TransactionStatusFailed && attempt.Status != enums.TransactionStatusCancelled {
				return ErrPurchaseNotPayable
			}
		case attempt.ExternalReference != nil || attempt.CreatedAt.After(cutoff):
			return ErrPaymentInProgress.WithDetails(map[string]any{"transaction_id": attempt.ID.String()})
		default:
			if _, err := w.Cancel(ctx, attempt.ID, supersededReason); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *service) Verify(ctx context.Context, buyerID, transactionID uuid.UUID) (*gateway.Verification, error) {
	tx, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != buyerID {
		return nil, ErrNotTransactionOwner
	}
	return s.gateway.VerifyPayment(ctx, transactionID)
}
