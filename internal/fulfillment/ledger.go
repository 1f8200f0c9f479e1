package fulfillment

import (
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/token"
)

// ScanOutcome classifies the result of presenting one scanned payload
// against an order.
type ScanOutcome string

const (
	ScanAccepted           ScanOutcome = "ACCEPTED"
	ScanRejectedWrongOrder ScanOutcome = "REJECTED_WRONG_ORDER"
	ScanRejectedDuplicate  ScanOutcome = "REJECTED_DUPLICATE"
	ScanRejectedMalformed  ScanOutcome = "REJECTED_MALFORMED"
)

// ScanResult is the full decision for one scan. Token is zero-valued when
// the payload was malformed. Order is the input order extended with the
// scanned uid when the outcome is ScanAccepted, otherwise it is returned
// unchanged.
type ScanResult struct {
	Outcome ScanOutcome
	Token   token.Token
	Order   models.Order
}

// RecordScan decides what a scan of payload means for the order currently
// open in the operator's session. The decision order is fixed, first match
// wins: malformed payload, wrong order, duplicate, accepted. The function
// is pure; persisting the extended verified set is the caller's job.
//
// Re-presenting the same uid after it was accepted always yields
// ScanRejectedDuplicate, so scanning is safe to repeat.
func RecordScan(order models.Order, payload string) ScanResult {
	tok, err := token.Decode(payload)
	if err != nil {
		return ScanResult{Outcome: ScanRejectedMalformed, Order: order}
	}

	if tok.OrderID != order.ID {
		return ScanResult{Outcome: ScanRejectedWrongOrder, Token: tok, Order: order}
	}

	if order.HasVerifiedUnit(tok.UID) {
		return ScanResult{Outcome: ScanRejectedDuplicate, Token: tok, Order: order}
	}

	return ScanResult{
		Outcome: ScanAccepted,
		Token:   tok,
		Order:   order.WithVerifiedUnit(tok.UID),
	}
}
