package ledger

import pkgerrors "github.com/devmarket/ledger-core/pkg/errors"

var (
	ErrInvalidAmount       = pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive with at most two decimal places")
	ErrInsufficientBalance = pkgerrors.New(pkgerrors.CodeInsufficientFunds, FailureInsufficientBalance)
	ErrTransactionNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	ErrAlreadyProcessed    = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "transaction already processed")
	ErrAlreadyReversed     = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "transaction already reversed")
	ErrNotReversible       = pkgerrors.New(pkgerrors.CodeStateConflict, "only completed transactions can be reversed")
	ErrInvalidTransition   = pkgerrors.New(pkgerrors.CodeStateConflict, "transaction status transition not allowed")
	ErrAccountFrozen       = pkgerrors.New(pkgerrors.CodeLedgerFrozen, "account frozen pending review")
	ErrBalanceMismatch     = pkgerrors.New(pkgerrors.CodeLedgerFrozen, "balance does not match balance log")
)

// FailureInsufficientBalance is stored as failure_reason when a balance
// settlement is refused.
const FailureInsufficientBalance = "insufficient_balance"
