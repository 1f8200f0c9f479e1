package models

import "time"

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// ValidStatuses lists every status an order may hold.
var ValidStatuses = []string{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Order represents a purchase order with unit-level scan verification.
// DeclaredUnitCount == 0 means unit tracking is not enabled for the order.
// VerifiedUnitIDs only ever grows; it is never cleared, not even on cancellation.
type Order struct {
	ID                string    `db:"id" json:"id"`
	BuyerID           string    `db:"buyer_id" json:"buyer_id"`
	Status            string    `db:"status" json:"status"`
	DeclaredUnitCount int       `db:"declared_unit_count" json:"declared_unit_count"`
	VerifiedUnitIDs   []string  `json:"verified_unit_ids"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// HasVerifiedUnit reports whether uid is already in the verified set.
func (o Order) HasVerifiedUnit(uid string) bool {
	for _, v := range o.VerifiedUnitIDs {
		if v == uid {
			return true
		}
	}
	return false
}

// WithVerifiedUnit returns a copy of the order with uid added to the
// verified set. The receiver is not modified.
func (o Order) WithVerifiedUnit(uid string) Order {
	ids := make([]string, 0, len(o.VerifiedUnitIDs)+1)
	ids = append(ids, o.VerifiedUnitIDs...)
	ids = append(ids, uid)
	o.VerifiedUnitIDs = ids
	return o
}

// WithStatus returns a copy of the order with the given status.
func (o Order) WithStatus(status string) Order {
	o.Status = status
	return o
}

// OrderUnit is one verified unit row, keyed by (order_id, uid).
type OrderUnit struct {
	OrderID   string    `db:"order_id" json:"order_id"`
	UID       string    `db:"uid" json:"uid"`
	ScannedAt time.Time `db:"scanned_at" json:"scanned_at"`
}
