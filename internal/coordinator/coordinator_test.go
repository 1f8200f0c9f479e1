package coordinator

import (
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(orderID, status string, declared int, uids ...string) *models.OrderSnapshotEvent {
	return &models.OrderSnapshotEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-" + orderID,
			EventType: models.EventTypeOrderSnapshot,
			Timestamp: time.Now(),
		},
		OrderID:           orderID,
		Status:            status,
		DeclaredUnitCount: declared,
		VerifiedUnitIDs:   uids,
	}
}

func TestApplyRemotePopulatesCache(t *testing.T) {
	c := New()
	defer c.Close()

	c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 3, "ord1_1"))

	view, ok := c.Get("ord1")
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusAccepted, view.Status)
	assert.Equal(t, []string{"ord1_1"}, view.VerifiedUnitIDs)
	assert.True(t, view.Confirmed)
}

func TestMergeIdempotence(t *testing.T) {
	c := New()
	defer c.Close()

	snap := snapshot("ord1", models.OrderStatusAccepted, 3, "ord1_1", "ord1_2")
	c.ApplyRemote(snap)
	first, _ := c.Get("ord1")

	c.ApplyRemote(snap)
	second, _ := c.Get("ord1")

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.VerifiedUnitIDs, second.VerifiedUnitIDs)
	assert.Equal(t, first.DeclaredUnitCount, second.DeclaredUnitCount)
}

func TestRemoteSnapshotReplacesOptimisticState(t *testing.T) {
	c := New()
	defer c.Close()

	// Local scan accepted optimistically.
	c.ApplyLocal(models.Order{
		ID:                "ord1",
		Status:            models.OrderStatusAccepted,
		DeclaredUnitCount: 3,
		VerifiedUnitIDs:   []string{"ord1_1"},
	})

	view, _ := c.Get("ord1")
	assert.False(t, view.Confirmed)

	// A stale remote snapshot without the scan wins wholesale; the scan
	// appears to disappear until its own write's snapshot arrives.
	c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 3))

	view, _ = c.Get("ord1")
	assert.True(t, view.Confirmed)
	assert.Empty(t, view.VerifiedUnitIDs)

	c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 3, "ord1_1"))
	view, _ = c.Get("ord1")
	assert.Equal(t, []string{"ord1_1"}, view.VerifiedUnitIDs)
}

func TestRollbackRestoresConfirmedBaseline(t *testing.T) {
	c := New()
	defer c.Close()

	c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 3, "ord1_1"))

	c.ApplyLocal(models.Order{
		ID:                "ord1",
		Status:            models.OrderStatusAccepted,
		DeclaredUnitCount: 3,
		VerifiedUnitIDs:   []string{"ord1_1", "ord1_2"},
	})

	restored := c.Rollback("ord1")
	assert.True(t, restored)

	view, _ := c.Get("ord1")
	assert.True(t, view.Confirmed)
	assert.Equal(t, []string{"ord1_1"}, view.VerifiedUnitIDs)
}

func TestRollbackWithoutBaselineDropsEntry(t *testing.T) {
	c := New()
	defer c.Close()

	c.ApplyLocal(models.Order{ID: "ord1", Status: models.OrderStatusPending})

	restored := c.Rollback("ord1")
	assert.False(t, restored)

	_, ok := c.Get("ord1")
	assert.False(t, ok)
}

func TestSubscribeFanOut(t *testing.T) {
	c := New()
	defer c.Close()

	subA := c.Subscribe("ord1")
	subB := c.Subscribe("ord1")
	other := c.Subscribe("ord2")
	defer c.Unsubscribe(other)

	c.ApplyRemote(snapshot("ord1", models.OrderStatusShipped, 2, "ord1_1", "ord1_2"))

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case view := <-sub.Views:
			assert.Equal(t, models.OrderStatusShipped, view.Status)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive view")
		}
	}

	select {
	case <-other.Views:
		t.Fatal("subscriber for another order received view")
	default:
	}

	c.Unsubscribe(subA)
	_, open := <-subA.Views
	assert.False(t, open)

	// subB still receives after subA left.
	c.ApplyRemote(snapshot("ord1", models.OrderStatusDelivered, 2, "ord1_1", "ord1_2"))
	select {
	case view := <-subB.Views:
		assert.Equal(t, models.OrderStatusDelivered, view.Status)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber did not receive view")
	}
	c.Unsubscribe(subB)
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	c := New()

	sub := c.Subscribe("ord1")
	c.Close()

	_, open := <-sub.Views
	assert.False(t, open)

	// Updates after Close are ignored.
	c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 1))
	_, ok := c.Get("ord1")
	assert.False(t, ok)
}

func TestFanOutRacesUnsubscribe(t *testing.T) {
	c := New()
	defer c.Close()

	// Subscriptions churn while snapshots fan out. A send must never
	// land on a channel the coordinator already closed.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		snap := snapshot("ord1", models.OrderStatusAccepted, 3, "ord1_1")
		for {
			select {
			case <-stop:
				return
			default:
				c.ApplyRemote(snap)
			}
		}
	}()

	for i := 0; i < 5000; i++ {
		sub := c.Subscribe("ord1")
		c.Unsubscribe(sub)
	}
	close(stop)
	<-done
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c := New()
	defer c.Close()

	sub := c.Subscribe("ord1")
	defer c.Unsubscribe(sub)

	// Overflow the buffer; ApplyRemote must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			c.ApplyRemote(snapshot("ord1", models.OrderStatusAccepted, 1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out blocked on slow subscriber")
	}
}
