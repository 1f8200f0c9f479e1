package fulfillment

import "fmt"

// IllegalTransitionError is returned when a requested status change is not
// in the transition table. It is never silently corrected; the caller made
// a programming or UI error.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s", e.From, e.To)
}

// ShipmentNotVerifiedError is returned when a transition into Shipped or
// Delivered is blocked by an unmet scan count. Remaining tells the caller
// how many units still need scanning.
type ShipmentNotVerifiedError struct {
	OrderID   string
	Remaining int
}

func (e *ShipmentNotVerifiedError) Error() string {
	return fmt.Sprintf("shipment not verified for order %s: %d units remaining", e.OrderID, e.Remaining)
}

// StoreUnavailableError wraps a persistence or feed failure. When the
// service returns it, any optimistic local state has already been rolled
// back to the last confirmed snapshot; the operation was never assumed to
// have succeeded.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
