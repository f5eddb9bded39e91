package enums

import "strings"

// PaymentMethodType is how the buyer settles an order.
type PaymentMethodType string

const (
	PaymentMethodCOD  PaymentMethodType = "cod"
	PaymentMethodCard PaymentMethodType = "card"
)

var validPaymentMethodTypes = []PaymentMethodType{
	PaymentMethodCOD,
	PaymentMethodCard,
}

// String implements fmt.Stringer.
func (p PaymentMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethodType.
func (p PaymentMethodType) IsValid() bool {
	for _, candidate := range validPaymentMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ClassifyPaymentMethod maps client input onto a method. Only "cod" (any case)
// is cash on delivery; every other value is treated as a card payment.
func ClassifyPaymentMethod(value string) PaymentMethodType {
	if strings.EqualFold(strings.TrimSpace(value), string(PaymentMethodCOD)) {
		return PaymentMethodCOD
	}
	return PaymentMethodCard
}
