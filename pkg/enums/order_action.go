package enums

import "fmt"

// OrderAction names a request to move an order between statuses.
type OrderAction string

const (
	OrderActionCancel         OrderAction = "cancel"
	OrderActionConfirmReceipt OrderAction = "confirm_receipt"
	OrderActionAdvance        OrderAction = "advance"
)

var validOrderActions = []OrderAction{
	OrderActionCancel,
	OrderActionConfirmReceipt,
	OrderActionAdvance,
}

// OrderActions returns every known action.
func OrderActions() []OrderAction {
	out := make([]OrderAction, len(validOrderActions))
	copy(out, validOrderActions)
	return out
}

// String implements fmt.Stringer.
func (a OrderAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known OrderAction.
func (a OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOrderAction converts raw input into an OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
