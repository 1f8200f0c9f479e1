package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// FeedPublisher publishes full-row order snapshots to the change feed.
// Every successful store write is followed by one snapshot, which is what
// lets a scan accepted in one process reappear in every other process.
type FeedPublisher struct {
	producer *Producer
}

// NewFeedPublisher creates a new feed publisher
func NewFeedPublisher(producer *Producer) *FeedPublisher {
	return &FeedPublisher{producer: producer}
}

// PublishSnapshot publishes the order's current row to the feed.
func (fp *FeedPublisher) PublishSnapshot(ctx context.Context, event *models.OrderSnapshotEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return fp.producer.PublishEvent(ctx, key, event)
}

// SnapshotHandler receives decoded snapshot events from the feed.
type SnapshotHandler func(ctx context.Context, event *models.OrderSnapshotEvent) error

// FeedHandler decodes feed messages and routes snapshots to the
// registered handler. Unknown event types are logged and skipped so the
// topic can grow new event kinds without breaking old consumers.
type FeedHandler struct {
	onSnapshot SnapshotHandler
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler() *FeedHandler {
	return &FeedHandler{}
}

// OnSnapshot registers the handler for order snapshot events.
func (fh *FeedHandler) OnSnapshot(handler SnapshotHandler) {
	fh.onSnapshot = handler
}

// HandleMessage decodes one feed message and dispatches it.
func (fh *FeedHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderSnapshot:
		if fh.onSnapshot != nil {
			var event models.OrderSnapshotEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderSnapshot event: %w", err)
			}
			return fh.onSnapshot(ctx, &event)
		}

	default:
		util.GetLogger().Debug("Unhandled event type",
			zap.String("event_type", baseEvent.EventType),
			zap.String("event_id", baseEvent.EventID))
	}

	return nil
}
