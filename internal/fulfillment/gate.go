package fulfillment

import "fulfillment-service/internal/models"

// CanShip reports whether the order may enter Shipped or Delivered.
// True when unit tracking is not enabled (declared count 0) or when every
// declared unit has been verified. The gate compares directly against the
// declared count rather than using Remaining, so an over-full verified set
// can never flip it back to false.
func CanShip(order models.Order) bool {
	if order.DeclaredUnitCount == 0 {
		return true
	}
	return len(order.VerifiedUnitIDs) >= order.DeclaredUnitCount
}

// Remaining returns how many units still need scanning, clamped at zero.
// Display only; the gate decision never derives from this value.
func Remaining(order models.Order) int {
	r := order.DeclaredUnitCount - len(order.VerifiedUnitIDs)
	if r < 0 {
		return 0
	}
	return r
}
