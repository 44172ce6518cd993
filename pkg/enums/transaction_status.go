package enums

import "fmt"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusDisputed  TransactionStatus = "disputed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
	TransactionStatusDisputed,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:   {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCompleted: {TransactionStatusRefunded, TransactionStatusDisputed},
	// a disputed transaction is a completed one under review
	TransactionStatusDisputed: {TransactionStatusRefunded, TransactionStatusCompleted},
}

// CanTransitionTo reports whether moving from t to next is a legal status change.
func (t TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, candidate := range transactionTransitions[t] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsSettled reports whether the gateway or balance outcome is already known.
func (t TransactionStatus) IsSettled() bool {
	return t != TransactionStatusPending
}
