package worker

import (
	"context"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/coordinator"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// FeedWorker is the single consumer loop between the change feed and the
// coordinator. Every snapshot fetched from the feed is applied through
// the coordinator's merge rule and fanned out to subscribers; no other
// code path applies remote state.
type FeedWorker struct {
	consumer *broker.Consumer
	handler  *broker.FeedHandler
	coord    *coordinator.Coordinator
	logger   *zap.Logger
}

// NewFeedWorker creates a new feed worker
func NewFeedWorker(consumer *broker.Consumer, coord *coordinator.Coordinator) *FeedWorker {
	handler := broker.NewFeedHandler()
	w := &FeedWorker{
		consumer: consumer,
		handler:  handler,
		coord:    coord,
		logger:   util.GetLogger(),
	}

	handler.OnSnapshot(w.handleSnapshot)
	return w
}

func (w *FeedWorker) handleSnapshot(_ context.Context, event *models.OrderSnapshotEvent) error {
	view := w.coord.ApplyRemote(event)
	w.logger.Debug("Applied feed snapshot",
		zap.String("order_id", event.OrderID),
		zap.String("status", view.Status),
		zap.Int("verified_units", len(view.VerifiedUnitIDs)))
	return nil
}

// Start runs the consumer loop until the context is cancelled.
func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop closes the underlying consumer.
func (w *FeedWorker) Stop() error {
	w.logger.Info("Stopping feed worker")
	return w.consumer.Close()
}
