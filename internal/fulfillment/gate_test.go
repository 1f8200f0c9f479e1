package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanShipTrackingDisabled(t *testing.T) {
	assert.True(t, CanShip(testOrder(0)))
}

func TestCanShipBelowDeclaredCount(t *testing.T) {
	assert.False(t, CanShip(testOrder(3, "ord1_1", "ord1_2")))
}

func TestCanShipAtDeclaredCount(t *testing.T) {
	assert.True(t, CanShip(testOrder(3, "ord1_1", "ord1_2", "ord1_3")))
}

func TestCanShipOverDeclaredCount(t *testing.T) {
	// An over-full verified set (declared count lowered externally) must
	// not flip the gate back to false.
	assert.True(t, CanShip(testOrder(2, "ord1_1", "ord1_2", "ord1_3")))
}

func TestGateMonotonicity(t *testing.T) {
	order := testOrder(3)

	for i, uid := range []string{"ord1_1", "ord1_2", "ord1_3"} {
		assert.False(t, CanShip(order), "gate open before scan %d", i+1)
		res := RecordScan(order, uid)
		assert.Equal(t, ScanAccepted, res.Outcome)
		order = res.Order
	}

	// Opens the instant the last required scan lands.
	assert.True(t, CanShip(order))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 3, Remaining(testOrder(3)))
	assert.Equal(t, 1, Remaining(testOrder(3, "ord1_1", "ord1_2")))
	assert.Equal(t, 0, Remaining(testOrder(3, "ord1_1", "ord1_2", "ord1_3")))
	assert.Equal(t, 0, Remaining(testOrder(2, "ord1_1", "ord1_2", "ord1_3")))
	assert.Equal(t, 0, Remaining(testOrder(0)))
}
