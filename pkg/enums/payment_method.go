package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	// PaymentMethodCash is cash on delivery and carries the shipping surcharge.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodPrepaid is settled through the payment gateway before shipping.
	PaymentMethodPrepaid PaymentMethod = "prepaid"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodPrepaid,
}

// wallet names accepted from storefront clients for prepaid checkouts.
var prepaidAliases = map[string]struct{}{
	"zalo":    {},
	"zalopay": {},
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Empty input
// defaults to prepaid, matching the storefront's preselected option.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return PaymentMethodPrepaid, nil
	}
	if _, ok := prepaidAliases[normalized]; ok {
		return PaymentMethodPrepaid, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
