package fulfillment

import "fulfillment-service/internal/models"

// legalTransitions is the full status transition graph. Cancelled and
// Delivered are terminal, except that Cancelled may be retrieved back to
// Pending as a recovery path for accidental cancellations.
var legalTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusAccepted, models.OrderStatusCancelled},
	models.OrderStatusAccepted:  {models.OrderStatusShipped, models.OrderStatusDelivered},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
	models.OrderStatusCancelled: {models.OrderStatusPending},
}

// gatedTargets are the targets that additionally require the shipment
// gate to pass when entered from Accepted.
var gatedTargets = map[string]bool{
	models.OrderStatusShipped:   true,
	models.OrderStatusDelivered: true,
}

// CanTransition reports whether the (from, to) pair is in the transition
// table, ignoring the shipment gate.
func CanTransition(from, to string) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// RequestTransition is the sole status mutator. It validates the requested
// transition against the table, consults the shipment gate when entering
// Shipped or Delivered from Accepted, and returns the order with the new
// status. Illegal requests are never coerced; the caller must satisfy the
// precondition and re-present.
//
// Cancelling does not clear the verified set, so an order retrieved from
// Cancelled keeps its scan progress.
func RequestTransition(order models.Order, target string) (models.Order, error) {
	if !CanTransition(order.Status, target) {
		return order, &IllegalTransitionError{From: order.Status, To: target}
	}

	if order.Status == models.OrderStatusAccepted && gatedTargets[target] {
		if !CanShip(order) {
			return order, &ShipmentNotVerifiedError{
				OrderID:   order.ID,
				Remaining: Remaining(order),
			}
		}
	}

	return order.WithStatus(target), nil
}
