package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestFeedHandlerRoutesSnapshots(t *testing.T) {
	fh := NewFeedHandler()

	var got *models.OrderSnapshotEvent
	fh.OnSnapshot(func(_ context.Context, event *models.OrderSnapshotEvent) error {
		got = event
		return nil
	})

	event := models.Snapshot("evt1", models.Order{
		ID:                "ord1",
		Status:            models.OrderStatusAccepted,
		DeclaredUnitCount: 2,
		VerifiedUnitIDs:   []string{"ord1_1"},
	})

	err := fh.HandleMessage(context.Background(), feedMessage(t, event))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ord1", got.OrderID)
	assert.Equal(t, models.OrderStatusAccepted, got.Status)
	assert.Equal(t, []string{"ord1_1"}, got.VerifiedUnitIDs)
}

func TestFeedHandlerSkipsUnknownEventTypes(t *testing.T) {
	fh := NewFeedHandler()

	called := false
	fh.OnSnapshot(func(context.Context, *models.OrderSnapshotEvent) error {
		called = true
		return nil
	})

	unknown := models.BaseEvent{
		EventID:   "evt2",
		EventType: "ORDER_ARCHIVED",
		Timestamp: time.Now(),
	}

	err := fh.HandleMessage(context.Background(), feedMessage(t, unknown))
	require.NoError(t, err)
	assert.False(t, called)
}

func TestFeedHandlerRejectsGarbage(t *testing.T) {
	fh := NewFeedHandler()

	err := fh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
