package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devmarket/ledger-core/internal/paymentmethods"
	"github.com/devmarket/ledger-core/pkg/db/models"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

// Writer performs ledger writes inside a transaction opened by
// Service.RunForUser. It never takes locks itself, so it must only be used
// from within that callback and only for the user the lock was taken for.
type Writer struct {
	repo     Repository
	logg     *logger.Logger
	currency string
	now      func() time.Time
}

// CommissionFor returns amount x rate rounded half-even to two places.
func CommissionFor(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).RoundBank(2)
}

// ValidAmount reports whether amount is positive with at most two decimals.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// CreateTransaction inserts a pending transaction with commission copied from
// the method. It has no balance effect.
func (w *Writer) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	switch input.Kind {
	case enums.TransactionKindPurchase, enums.TransactionKindDeposit:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transactions of kind "+input.Kind.String()+" are created by the ledger")
	}
	if !ValidAmount(input.Amount) {
		return nil, ErrInvalidAmount
	}
	if err := paymentmethods.CheckAmount(input.Method, input.Amount); err != nil {
		return nil, err
	}

	commission := CommissionFor(input.Amount, input.Method.CommissionRate)
	methodID := input.Method.ID
	tx := &models.Transaction{
		UserID:           input.UserID,
		Kind:             input.Kind,
		Status:           enums.TransactionStatusPending,
		Amount:           input.Amount,
		Currency:         w.currency,
		CommissionRate:   input.Method.CommissionRate,
		CommissionAmount: commission,
		NetAmount:        input.Amount.Sub(commission),
		PaymentMethodID:  &methodID,
		PurchaseID:       input.PurchaseID,
		WithdrawalID:     input.WithdrawalID,
		Description:      strings.TrimSpace(input.Description),
		IPAddress:        optionalString(input.IPAddress),
		UserAgent:        optionalString(input.UserAgent),
	}
	if err := w.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create transaction")
	}
	return tx, nil
}

// SettleViaBalance debits the payer and completes the transaction. When the
// balance is short the transaction is marked failed and returned without
// error; nothing else changes.
func (w *Writer) SettleViaBalance(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return tx, ErrAlreadyProcessed
	}

	account, err := w.lockAccount(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	now := w.now()
	if account.Balance.LessThan(tx.Amount) {
		return w.transition(ctx, tx, enums.TransactionStatusFailed, map[string]any{
			"failure_reason": FailureInsufficientBalance,
		})
	}

	if _, err := w.post(ctx, account, posting{
		direction:     enums.BalanceDirectionDebit,
		amount:        tx.Amount,
		transactionID: &tx.ID,
		description:   "payment for transaction " + tx.ID.String(),
	}); err != nil {
		return nil, err
	}
	return w.transition(ctx, tx, enums.TransactionStatusCompleted, map[string]any{
		"completed_at": now,
	})
}

// AttachGatewayReference records the processor reference. The transaction
// stays pending until a webhook or poll confirms it.
func (w *Writer) AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, reference string, response json.RawMessage) (*models.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return tx, ErrAlreadyProcessed
	}
	updates := map[string]any{"external_reference": reference}
	if len(response) > 0 {
		updates["gateway_response"] = response
	}
	if err := w.repo.UpdateTransaction(ctx, tx.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach gateway reference")
	}
	return w.reload(ctx, tx.ID)
}

// CompleteExternal finalizes a gateway-settled transaction. Purchases do not
// touch the platform balance; deposits credit the net amount.
func (w *Writer) CompleteExternal(ctx context.Context, transactionID uuid.UUID, response json.RawMessage) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return tx, ErrAlreadyProcessed
	}

	if tx.Kind == enums.TransactionKindDeposit {
		account, err := w.lockAccount(ctx, tx.UserID)
		if err != nil {
			return nil, err
		}
		if _, err := w.post(ctx, account, posting{
			direction:     enums.BalanceDirectionCredit,
			amount:        tx.NetAmount,
			transactionID: &tx.ID,
			description:   "deposit " + tx.ID.String(),
		}); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{"completed_at": w.now()}
	if len(response) > 0 {
		updates["gateway_response"] = response
	}
	return w.transition(ctx, tx, enums.TransactionStatusCompleted, updates)
}

// Fail marks a pending transaction failed with reason.
func (w *Writer) Fail(ctx context.Context, transactionID uuid.UUID, reason string, response json.RawMessage) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return tx, ErrAlreadyProcessed
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}
	updates := map[string]any{"failure_reason": reason}
	if len(response) > 0 {
		updates["gateway_response"] = response
	}
	return w.transition(ctx, tx, enums.TransactionStatusFailed, updates)
}

// Cancel abandons a pending transaction.
func (w *Writer) Cancel(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != enums.TransactionStatusPending {
		return tx, ErrAlreadyProcessed
	}
	updates := map[string]any{}
	if reason = strings.TrimSpace(reason); reason != "" {
		updates["failure_reason"] = reason
	}
	return w.transition(ctx, tx, enums.TransactionStatusCancelled, updates)
}

// MarkDisputed flags a completed transaction while its purchase is under review.
func (w *Writer) MarkDisputed(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == enums.TransactionStatusDisputed {
		return tx, nil
	}
	return w.transition(ctx, tx, enums.TransactionStatusDisputed, nil)
}

// ReleaseDispute returns a disputed transaction to completed.
func (w *Writer) ReleaseDispute(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == enums.TransactionStatusCompleted {
		return tx, nil
	}
	return w.transition(ctx, tx, enums.TransactionStatusCompleted, nil)
}

// Reverse credits the payer the full amount and links a refund transaction to
// the original. Commission is not returned. A second call returns the
// existing refund with ErrAlreadyReversed.
func (w *Writer) Reverse(ctx context.Context, transactionID uuid.UUID, description string) (*models.Transaction, error) {
	original, err := w.lockTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	switch original.Status {
	case enums.TransactionStatusCompleted, enums.TransactionStatusDisputed:
	case enums.TransactionStatusRefunded:
		existing, err := w.repo.FindReversalOf(ctx, original.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
		}
		return existing, ErrAlreadyReversed
	default:
		return nil, ErrNotReversible
	}
	if original.Kind == enums.TransactionKindRefund || original.Kind == enums.TransactionKindWithdrawal {
		return nil, ErrNotReversible
	}

	account, err := w.lockAccount(ctx, original.UserID)
	if err != nil {
		return nil, err
	}

	now := w.now()
	description = strings.TrimSpace(description)
	if description == "" {
		description = "refund of transaction " + original.ID.String()
	}
	refund := &models.Transaction{
		UserID:           original.UserID,
		Kind:             enums.TransactionKindRefund,
		Status:           enums.TransactionStatusCompleted,
		Amount:           original.Amount,
		Currency:         original.Currency,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		NetAmount:        original.Amount,
		PurchaseID:       original.PurchaseID,
		ReversalOfID:     &original.ID,
		Description:      description,
		CompletedAt:      &now,
	}
	if err := w.repo.CreateTransaction(ctx, refund); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create refund transaction")
	}

	if _, err := w.post(ctx, account, posting{
		direction:     enums.BalanceDirectionCredit,
		amount:        original.Amount,
		transactionID: &refund.ID,
		description:   description,
		metadata: map[string]any{
			"reversal_of":         original.ID.String(),
			"commission_absorbed": original.CommissionAmount.StringFixed(2),
		},
	}); err != nil {
		return nil, err
	}

	if _, err := w.transition(ctx, original, enums.TransactionStatusRefunded, nil); err != nil {
		return nil, err
	}
	return refund, nil
}

// ReserveWithdrawal debits the full withdrawal amount at request time.
func (w *Writer) ReserveWithdrawal(ctx context.Context, userID, withdrawalID uuid.UUID, amount decimal.Decimal) (*models.BalanceTransaction, error) {
	account, err := w.lockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	return w.post(ctx, account, posting{
		direction:    enums.BalanceDirectionDebit,
		amount:       amount,
		withdrawalID: &withdrawalID,
		description:  "withdrawal reserve " + withdrawalID.String(),
	})
}

// ReleaseWithdrawal credits back a reserved withdrawal amount.
func (w *Writer) ReleaseWithdrawal(ctx context.Context, userID, withdrawalID uuid.UUID, amount decimal.Decimal, reason string) (*models.BalanceTransaction, error) {
	account, err := w.lockAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.post(ctx, account, posting{
		direction:    enums.BalanceDirectionCredit,
		amount:       amount,
		withdrawalID: &withdrawalID,
		description:  "withdrawal released " + withdrawalID.String(),
		metadata:     map[string]any{"reason": reason},
	})
}

// RecordWithdrawalPayout creates the completed payout transaction for the net
// amount. The balance was already debited at request time.
func (w *Writer) RecordWithdrawalPayout(ctx context.Context, withdrawal *models.WithdrawalRequest) (*models.Transaction, error) {
	if withdrawal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal required")
	}
	now := w.now()
	tx := &models.Transaction{
		UserID:           withdrawal.UserID,
		Kind:             enums.TransactionKindWithdrawal,
		Status:           enums.TransactionStatusCompleted,
		Amount:           withdrawal.NetAmount,
		Currency:         w.currency,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		NetAmount:        withdrawal.NetAmount,
		WithdrawalID:     &withdrawal.ID,
		Description:      "payout via " + withdrawal.PayoutMethod.String(),
		CompletedAt:      &now,
	}
	if err := w.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payout transaction")
	}
	return tx, nil
}

// Adjust records a completed deposit (credit) or penalty (debit) booked by an admin.
func (w *Writer) Adjust(ctx context.Context, input AdjustmentInput, kind enums.TransactionKind) (*models.Transaction, error) {
	if !ValidAmount(input.Amount) {
		return nil, ErrInvalidAmount
	}
	direction := enums.BalanceDirectionCredit
	if kind == enums.TransactionKindPenalty {
		direction = enums.BalanceDirectionDebit
	}

	account, err := w.lockAccount(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if direction == enums.BalanceDirectionDebit && account.Balance.LessThan(input.Amount) {
		return nil, ErrInsufficientBalance
	}

	now := w.now()
	tx := &models.Transaction{
		UserID:           input.UserID,
		Kind:             kind,
		Status:           enums.TransactionStatusCompleted,
		Amount:           input.Amount,
		Currency:         w.currency,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		NetAmount:        input.Amount,
		Description:      strings.TrimSpace(input.Description),
		CompletedAt:      &now,
	}
	if err := w.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create adjustment transaction")
	}
	if _, err := w.post(ctx, account, posting{
		direction:     direction,
		amount:        input.Amount,
		transactionID: &tx.ID,
		description:   tx.Description,
		metadata:      map[string]any{"admin_id": input.AdminID.String()},
	}); err != nil {
		return nil, err
	}
	return tx, nil
}

type posting struct {
	direction     enums.BalanceDirection
	amount        decimal.Decimal
	transactionID *uuid.UUID
	withdrawalID  *uuid.UUID
	description   string
	metadata      map[string]any
}

// post appends one balance entry and moves the cached balance with it. The
// account must have been loaded through lockAccount in this transaction.
func (w *Writer) post(ctx context.Context, account *models.Account, p posting) (*models.BalanceTransaction, error) {
	if !ValidAmount(p.amount) {
		return nil, ErrInvalidAmount
	}
	before := account.Balance
	after := before.Add(p.amount)
	if p.direction == enums.BalanceDirectionDebit {
		after = before.Sub(p.amount)
	}
	if after.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	entry := &models.BalanceTransaction{
		UserID:        account.UserID,
		Sequence:      account.LastSequence + 1,
		Direction:     p.direction,
		Amount:        p.amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		TransactionID: p.transactionID,
		WithdrawalID:  p.withdrawalID,
		Description:   p.description,
		Metadata:      p.metadata,
	}
	if err := w.repo.CreateBalanceEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append balance entry")
	}
	if err := w.repo.UpdateAccountBalance(ctx, account.UserID, after, entry.Sequence); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update balance")
	}
	account.Balance = after
	account.LastSequence = entry.Sequence
	return entry, nil
}

func (w *Writer) lockAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account, err := w.repo.LockAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock account")
	}
	if account.Frozen {
		return nil, ErrAccountFrozen
	}
	return account, nil
}

func (w *Writer) lockTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.repo.LockTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (w *Writer) transition(ctx context.Context, tx *models.Transaction, to enums.TransactionStatus, updates map[string]any) (*models.Transaction, error) {
	if !tx.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}
	ok, err := w.repo.TransitionTransaction(ctx, tx.ID, tx.Status, to, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction status")
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	return w.reload(ctx, tx.ID)
}

func (w *Writer) reload(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload transaction")
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// SettlingTransaction returns the purchase transaction that paid for
// purchaseID, or nil when the purchase was never settled.
func (w *Writer) SettlingTransaction(ctx context.Context, purchaseID uuid.UUID) (*models.Transaction, error) {
	tx, err := w.repo.FindSettlingTransaction(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settling transaction")
	}
	return tx, nil
}

// PurchaseAttempts lists every purchase transaction opened for purchaseID,
// oldest first. Callers hold the buyer's lock so the list cannot grow under
// them.
func (w *Writer) PurchaseAttempts(ctx context.Context, purchaseID uuid.UUID) ([]models.Transaction, error) {
	rows, err := w.repo.ListPurchaseTransactions(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchase transactions")
	}
	return rows, nil
}
