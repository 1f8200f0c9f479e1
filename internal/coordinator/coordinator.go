package coordinator

import (
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// OrderView is the merged per-order state the coordinator hands to
// observers. Confirmed is false while the view carries an optimistic
// local update the store has not acknowledged yet.
type OrderView struct {
	OrderID           string    `json:"order_id"`
	Status            string    `json:"status"`
	DeclaredUnitCount int       `json:"declared_unit_count"`
	VerifiedUnitIDs   []string  `json:"verified_unit_ids"`
	Confirmed         bool      `json:"confirmed"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type orderState struct {
	current      OrderView
	confirmed    OrderView
	hasConfirmed bool
}

// Subscription delivers merged views for one order. Views is buffered;
// a subscriber that falls behind misses intermediate views, never the
// latest one delivered after it catches up.
type Subscription struct {
	Views   <-chan OrderView
	orderID string
	ch      chan OrderView
}

// Coordinator reconciles local optimistic state with authoritative remote
// snapshots. One instance per process, one cached view per order id.
//
// The merge rule is last-writer-wins by field, taken wholesale: a remote
// snapshot always replaces the cached status and verified set, because
// the store is the single source of truth and local optimism is only a
// latency hedge. A locally accepted scan missing from a stale snapshot
// therefore disappears until the snapshot caused by its own write
// arrives and restores it.
type Coordinator struct {
	mu     sync.Mutex
	orders map[string]*orderState
	subs   map[string][]*Subscription
	closed bool
	logger *zap.Logger
}

// New creates a coordinator. Tear it down with Close on shutdown.
func New() *Coordinator {
	return &Coordinator{
		orders: make(map[string]*orderState),
		subs:   make(map[string][]*Subscription),
		logger: util.GetLogger(),
	}
}

// ApplyRemote merges a feed snapshot into the cache. The snapshot
// replaces status, declared count and verified set wholesale and becomes
// the confirmed baseline, discarding any unconfirmed optimistic state.
// Applying the same snapshot twice is a no-op the second time.
func (c *Coordinator) ApplyRemote(event *models.OrderSnapshotEvent) OrderView {
	view := OrderView{
		OrderID:           event.OrderID,
		Status:            event.Status,
		DeclaredUnitCount: event.DeclaredUnitCount,
		VerifiedUnitIDs:   copyIDs(event.VerifiedUnitIDs),
		Confirmed:         true,
		UpdatedAt:         event.Timestamp,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return view
	}
	st := c.state(event.OrderID)
	st.current = view
	st.confirmed = view
	st.hasConfirmed = true
	c.mu.Unlock()

	util.SnapshotsAppliedTotal.Inc()
	c.fanOut(event.OrderID, view)
	return view
}

// ApplyLocal installs the result of a local action as the current view
// before the store has acknowledged it. Confirm or Rollback must follow.
func (c *Coordinator) ApplyLocal(order models.Order) OrderView {
	view := viewFromOrder(order, false)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return view
	}
	c.state(order.ID).current = view
	c.mu.Unlock()

	c.fanOut(order.ID, view)
	return view
}

// Confirm promotes the order's state to the confirmed baseline after the
// store acknowledged the write.
func (c *Coordinator) Confirm(order models.Order) OrderView {
	view := viewFromOrder(order, true)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return view
	}
	st := c.state(order.ID)
	st.current = view
	st.confirmed = view
	st.hasConfirmed = true
	c.mu.Unlock()

	c.fanOut(order.ID, view)
	return view
}

// Rollback restores the last confirmed view after a persistence failure
// or timeout. A pending write is never treated as committed without
// store confirmation. Returns false when there is no confirmed baseline,
// in which case the cache entry is dropped entirely.
func (c *Coordinator) Rollback(orderID string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	st, ok := c.orders[orderID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if !st.hasConfirmed {
		delete(c.orders, orderID)
		c.mu.Unlock()
		util.OptimisticRollbacksTotal.Inc()
		return false
	}
	view := st.confirmed
	st.current = view
	c.mu.Unlock()

	util.OptimisticRollbacksTotal.Inc()
	c.logger.Warn("Rolled back optimistic state", zap.String("order_id", orderID))
	c.fanOut(orderID, view)
	return true
}

// Get returns the cached merged view for an order.
func (c *Coordinator) Get(orderID string) (OrderView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.orders[orderID]
	if !ok {
		return OrderView{}, false
	}
	return st.current, true
}

// Subscribe registers an observer for one order's merged views.
func (c *Coordinator) Subscribe(orderID string) *Subscription {
	ch := make(chan OrderView, 16)
	sub := &Subscription{Views: ch, orderID: orderID, ch: ch}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return sub
	}
	c.subs[orderID] = append(c.subs[orderID], sub)
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (c *Coordinator) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subs[sub.orderID]
	for i, s := range subs {
		if s == sub {
			c.subs[sub.orderID] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Close tears down all subscriptions and stops accepting updates.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, subs := range c.subs {
		for _, s := range subs {
			close(s.ch)
		}
	}
	c.subs = make(map[string][]*Subscription)
}

// state returns the entry for orderID, creating it if needed.
// Caller holds c.mu.
func (c *Coordinator) state(orderID string) *orderState {
	st, ok := c.orders[orderID]
	if !ok {
		st = &orderState{}
		c.orders[orderID] = st
	}
	return st
}

// fanOut delivers the view to every subscriber of the order. Sends never
// block: a full channel drops the view, the subscriber catches up on the
// next one. The lock is held across the sends so Unsubscribe and Close
// cannot close a channel mid-delivery.
func (c *Coordinator) fanOut(orderID string, view OrderView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.subs[orderID] {
		select {
		case s.ch <- view:
		default:
		}
	}
}

func viewFromOrder(order models.Order, confirmed bool) OrderView {
	return OrderView{
		OrderID:           order.ID,
		Status:            order.Status,
		DeclaredUnitCount: order.DeclaredUnitCount,
		VerifiedUnitIDs:   copyIDs(order.VerifiedUnitIDs),
		Confirmed:         confirmed,
		UpdatedAt:         time.Now(),
	}
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
