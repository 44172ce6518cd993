package enums

import "fmt"

// BalanceDirection marks whether a balance entry adds or removes funds.
type BalanceDirection string

const (
	BalanceDirectionCredit BalanceDirection = "credit"
	BalanceDirectionDebit  BalanceDirection = "debit"
)

var validBalanceDirections = []BalanceDirection{
	BalanceDirectionCredit,
	BalanceDirectionDebit,
}

// String implements fmt.Stringer.
func (b BalanceDirection) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BalanceDirection.
func (b BalanceDirection) IsValid() bool {
	for _, candidate := range validBalanceDirections {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBalanceDirection converts raw input into a BalanceDirection.
func ParseBalanceDirection(value string) (BalanceDirection, error) {
	for _, candidate := range validBalanceDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance direction %q", value)
}

// Sign returns +1 for credits and -1 for debits.
func (b BalanceDirection) Sign() int64 {
	if b == BalanceDirectionDebit {
		return -1
	}
	return 1
}
