package enums

import "fmt"

// TransactionKind classifies what a ledger transaction represents.
type TransactionKind string

const (
	TransactionKindPurchase   TransactionKind = "purchase"
	TransactionKindRefund     TransactionKind = "refund"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindCommission TransactionKind = "commission"
	TransactionKindPenalty    TransactionKind = "penalty"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindPurchase,
	TransactionKindRefund,
	TransactionKindWithdrawal,
	TransactionKindDeposit,
	TransactionKindCommission,
	TransactionKindPenalty,
}

// String implements fmt.Stringer.
func (t TransactionKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionKind.
func (t TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
