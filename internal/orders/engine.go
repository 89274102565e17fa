package orders

import (
	"fmt"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
	pkgerrors "github.com/namthanhstores/storefront-backend/pkg/errors"
)

type transitionKey struct {
	from   enums.OrderStatus
	action enums.OrderAction
}

// transitions is the complete set of legal moves. Every pair not listed is
// rejected.
var transitions = map[transitionKey]enums.OrderStatus{
	{enums.OrderStatusPending, enums.OrderActionCancel}:          enums.OrderStatusCancelled,
	{enums.OrderStatusPreparing, enums.OrderActionCancel}:        enums.OrderStatusCancelled,
	{enums.OrderStatusShipping, enums.OrderActionConfirmReceipt}: enums.OrderStatusCompleted,
	{enums.OrderStatusPending, enums.OrderActionAdvance}:         enums.OrderStatusPreparing,
	{enums.OrderStatusPreparing, enums.OrderActionAdvance}:       enums.OrderStatusShipping,
}

// Actor is the identity requesting a transition.
type Actor struct {
	UserID string
	Role   enums.Role
}

// IsStaff reports whether the actor works the back office.
func (a Actor) IsStaff() bool {
	return a.Role == enums.RoleStaff
}

// Next returns the status reached by applying action to from, or a
// CodeStateConflict error naming the current status.
func Next(from enums.OrderStatus, action enums.OrderAction) (enums.OrderStatus, error) {
	if !action.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order action %q", action))
	}
	to, ok := transitions[transitionKey{from: from, action: action}]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot %s an order in status %s", actionVerb(action), from)).
			WithDetails(map[string]any{
				"current_status": from.String(),
				"current_label":  from.Label(),
				"action":         action.String(),
			})
	}
	return to, nil
}

// Authorize checks that actor may request action on order. Buyers act only
// on their own orders; advancing is reserved for staff.
func Authorize(actor Actor, order *Order, action enums.OrderAction) error {
	switch action {
	case enums.OrderActionAdvance:
		if !actor.IsStaff() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only staff can advance orders")
		}
	case enums.OrderActionCancel, enums.OrderActionConfirmReceipt:
		if actor.UserID == "" || actor.UserID != order.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order action %q", action))
	}
	return nil
}

// Engine validates and applies status transitions.
type Engine struct{}

// Apply authorizes actor and returns the status order moves to. The order is
// not modified.
func (Engine) Apply(actor Actor, order *Order, action enums.OrderAction) (enums.OrderStatus, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := Authorize(actor, order, action); err != nil {
		return "", err
	}
	return Next(order.Status, action)
}

func actionVerb(action enums.OrderAction) string {
	switch action {
	case enums.OrderActionConfirmReceipt:
		return "confirm receipt of"
	default:
		return string(action)
	}
}
