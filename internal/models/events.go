package models

import "time"

// Event types
const (
	EventTypeOrderSnapshot = "ORDER_SNAPSHOT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderSnapshotEvent carries a full current-row snapshot of an order.
// The feed is at-least-once and may deliver snapshots out of order, so
// every snapshot must be treated as authoritative at time of arrival,
// never as a delta.
type OrderSnapshotEvent struct {
	BaseEvent
	OrderID           string   `json:"order_id"`
	Status            string   `json:"status"`
	DeclaredUnitCount int      `json:"declared_unit_count"`
	VerifiedUnitIDs   []string `json:"verified_unit_ids"`
}

// Snapshot builds a snapshot event from the current order row.
func Snapshot(eventID string, order Order) *OrderSnapshotEvent {
	ids := make([]string, len(order.VerifiedUnitIDs))
	copy(ids, order.VerifiedUnitIDs)

	return &OrderSnapshotEvent{
		BaseEvent: BaseEvent{
			EventID:   eventID,
			EventType: EventTypeOrderSnapshot,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		Status:            order.Status,
		DeclaredUnitCount: order.DeclaredUnitCount,
		VerifiedUnitIDs:   ids,
	}
}
