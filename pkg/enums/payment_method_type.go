package enums

import (
	"fmt"
	"strings"
)

// PaymentMethodType identifies the channel a payment method settles through.
type PaymentMethodType string

const (
	PaymentMethodTypeUzcard     PaymentMethodType = "uzcard"
	PaymentMethodTypeHumo       PaymentMethodType = "humo"
	PaymentMethodTypeVisa       PaymentMethodType = "visa"
	PaymentMethodTypeMastercard PaymentMethodType = "mastercard"
	PaymentMethodTypePayPal     PaymentMethodType = "paypal"
	PaymentMethodTypeClick      PaymentMethodType = "click"
	PaymentMethodTypePayme      PaymentMethodType = "payme"
	PaymentMethodTypeMirPay     PaymentMethodType = "mirpay"
	PaymentMethodTypeBalance    PaymentMethodType = "balance"
)

var paymentMethodTypes = map[PaymentMethodType]struct{}{
	PaymentMethodTypeUzcard:     {},
	PaymentMethodTypeHumo:       {},
	PaymentMethodTypeVisa:       {},
	PaymentMethodTypeMastercard: {},
	PaymentMethodTypePayPal:     {},
	PaymentMethodTypeClick:      {},
	PaymentMethodTypePayme:      {},
	PaymentMethodTypeMirPay:     {},
	PaymentMethodTypeBalance:    {},
}

func (p PaymentMethodType) String() string { return string(p) }

func (p PaymentMethodType) IsValid() bool {
	_, ok := paymentMethodTypes[p]
	return ok
}

// ParsePaymentMethodType accepts the channel name in any case.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	candidate := PaymentMethodType(strings.ToLower(strings.TrimSpace(value)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid payment method type %q", value)
	}
	return candidate, nil
}

// SettlesInternally reports whether payments of this type draw from the
// platform balance instead of an external processor.
func (p PaymentMethodType) SettlesInternally() bool {
	return p == PaymentMethodTypeBalance
}
