package enums

import "fmt"

// PayoutMethod is the channel a withdrawal is paid out through.
type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodUzcard       PayoutMethod = "uzcard"
	PayoutMethodHumo         PayoutMethod = "humo"
	PayoutMethodPayPal       PayoutMethod = "paypal"
	PayoutMethodClick        PayoutMethod = "click"
	PayoutMethodPayme        PayoutMethod = "payme"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodBankTransfer,
	PayoutMethodUzcard,
	PayoutMethodHumo,
	PayoutMethodPayPal,
	PayoutMethodClick,
	PayoutMethodPayme,
}

// String implements fmt.Stringer.
func (p PayoutMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMethod.
func (p PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}
