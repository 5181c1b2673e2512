package orders

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/enums"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
)

const (
	ReasonOrderNotFound     pkgerrors.Reason = "ORDER_NOT_FOUND"
	ReasonAlreadyCancelled  pkgerrors.Reason = "ALREADY_CANCELLED"
	ReasonAlreadyDone       pkgerrors.Reason = "ALREADY_DONE"
	ReasonNotCancelled      pkgerrors.Reason = "NOT_CANCELLED"
	ReasonInvalidTransition pkgerrors.Reason = "INVALID_TRANSITION"
	ReasonInvalidStatus     pkgerrors.Reason = "INVALID_STATUS"
)

func ErrOrderNotFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found").
		WithReason(ReasonOrderNotFound).
		WithDetails(map[string]any{"order_id": orderID})
}

func ErrAlreadyCancelled() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Order already cancelled").WithReason(ReasonAlreadyCancelled)
}

func ErrAlreadyDone() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot cancel completed order").WithReason(ReasonAlreadyDone)
}

func ErrNotCancelled() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Only cancelled orders can be deleted").WithReason(ReasonNotCancelled)
}

func ErrInvalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Cannot change order status from %s to %s", from, to)).
		WithReason(ReasonInvalidTransition).
		WithDetails(map[string]any{"from": from, "to": to})
}

func ErrInvalidStatus(value string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Invalid order status").
		WithReason(ReasonInvalidStatus).
		WithDetails(map[string]any{"status": value, "allowed": enums.OrderStatuses()})
}
