package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/coordinator"
	"fulfillment-service/internal/fulfillment"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/token"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnitIndexOutOfRange is returned when a token is requested for a unit
// index outside 1..declaredUnitCount.
var ErrUnitIndexOutOfRange = errors.New("unit index out of range")

// OrderStore is the slice of the persistent store the service needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderUnits(ctx context.Context, orderID string) ([]models.OrderUnit, error)
	AddVerifiedUnit(ctx context.Context, orderID, uid string) (bool, error)
	SetDeclaredUnitCount(ctx context.Context, orderID string, count int) error
	UpdateOrderStatus(ctx context.Context, orderID, from, to string) error
}

// SnapshotPublisher pushes full-row order snapshots onto the change feed.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, event *models.OrderSnapshotEvent) error
}

// SessionCache keeps operator scan sessions and cached order views.
// A nil SessionCache disables both; Postgres stays authoritative.
type SessionCache interface {
	SetScanSession(ctx context.Context, sessionID, orderID string, ttl time.Duration) error
	GetScanSession(ctx context.Context, sessionID string) (string, error)
	CacheOrderView(ctx context.Context, orderID string, view interface{}, ttl time.Duration) error
	GetCachedOrderView(ctx context.Context, orderID string, dest interface{}) (bool, error)
}

// Options carries the business knobs for the service.
type Options struct {
	PersistTimeout time.Duration
	ScanSessionTTL time.Duration
	ViewCacheTTL   time.Duration
	TokenBaseURL   string
}

// OrderService owns every suspending operation: each one runs the pure
// decision first, applies the result optimistically to the coordinator,
// persists with a bounded timeout, then confirms or rolls back before
// publishing the resulting snapshot to the feed.
type OrderService struct {
	store     OrderStore
	cache     SessionCache
	publisher SnapshotPublisher
	coord     *coordinator.Coordinator
	opts      Options
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	st OrderStore,
	cache SessionCache,
	publisher SnapshotPublisher,
	coord *coordinator.Coordinator,
	opts Options,
) *OrderService {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &OrderService{
		store:     st,
		cache:     cache,
		publisher: publisher,
		coord:     coord,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

// CreateOrder creates a new order in Pending status.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	order := &models.Order{
		ID:      uuid.New().String(),
		BuyerID: buyerID,
		Status:  models.OrderStatusPending,
	}

	pctx, cancel := s.persistCtx(ctx)
	defer cancel()
	if err := s.store.CreateOrder(pctx, order); err != nil {
		return nil, s.storeUnavailable("create_order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", buyerID))

	s.confirmAndPublish(ctx, *order)
	return order, nil
}

// EnableUnitTracking sets the declared unit count for an order. The count
// can be set once; repeating the same count is a no-op.
func (s *OrderService) EnableUnitTracking(ctx context.Context, orderID string, count int) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.EnableUnitTracking")
	defer span.End()

	if count < 1 {
		return nil, fmt.Errorf("declared unit count must be positive, got %d", count)
	}

	pctx, cancel := s.persistCtx(ctx)
	defer cancel()
	if err := s.store.SetDeclaredUnitCount(pctx, orderID, count); err != nil {
		if isDomainStoreErr(err) {
			return nil, err
		}
		return nil, s.storeUnavailable("set_declared_count", err)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.storeUnavailable("get_order", err)
	}

	s.logger.Info("Unit tracking enabled",
		zap.String("order_id", orderID),
		zap.Int("declared_unit_count", count))

	s.confirmAndPublish(ctx, *order)
	return order, nil
}

// GenerateUnitToken produces the scannable payload for one unit of an
// order. Generation is idempotent: the same (order, index) always yields
// the same payload.
func (s *OrderService) GenerateUnitToken(ctx context.Context, orderID string, unitIndex int) (string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GenerateUnitToken")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if isDomainStoreErr(err) {
			return "", err
		}
		return "", s.storeUnavailable("get_order", err)
	}

	if order.DeclaredUnitCount == 0 || unitIndex < 1 || unitIndex > order.DeclaredUnitCount {
		return "", fmt.Errorf("%w: %d of %d", ErrUnitIndexOutOfRange, unitIndex, order.DeclaredUnitCount)
	}

	return token.Encode(s.opts.TokenBaseURL, orderID, unitIndex), nil
}

// ScanResponse reports the decision for one submitted scan together with
// the order's verification progress after it.
type ScanResponse struct {
	Outcome   fulfillment.ScanOutcome `json:"outcome"`
	UID       string                  `json:"uid,omitempty"`
	TokenFor  string                  `json:"token_order_id,omitempty"`
	Remaining int                     `json:"remaining"`
	CanShip   bool                    `json:"can_ship"`
}

// SubmitScan validates a scanned payload against the session's order and,
// when accepted, appends the uid to the verified set. The append is
// conditional on the store side, so two operators racing on the same
// sticker resolve to exactly one acceptance.
func (s *OrderService) SubmitScan(ctx context.Context, orderID, payload string) (*ScanResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitScan")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if isDomainStoreErr(err) {
			return nil, err
		}
		return nil, s.storeUnavailable("get_order", err)
	}

	res := fulfillment.RecordScan(*order, payload)
	if res.Outcome != fulfillment.ScanAccepted {
		util.ScansRejectedTotal.WithLabelValues(string(res.Outcome)).Inc()
		s.logger.Info("Scan rejected",
			zap.String("order_id", orderID),
			zap.String("outcome", string(res.Outcome)),
			zap.String("uid", res.Token.UID))
		return scanResponse(res), nil
	}

	// Optimistic: observers see the scan before the store acknowledges.
	s.coord.ApplyLocal(res.Order)

	start := time.Now()
	pctx, cancel := s.persistCtx(ctx)
	defer cancel()
	added, err := s.store.AddVerifiedUnit(pctx, orderID, res.Token.UID)
	util.PersistLatency.WithLabelValues("add_verified_unit").Observe(time.Since(start).Seconds())
	if err != nil {
		s.coord.Rollback(orderID)
		return nil, s.storeUnavailable("add_verified_unit", err)
	}

	if !added {
		// Another operator's scan of the same sticker landed first. The
		// uid is present in the store either way, so res.Order already
		// carries the right membership for the progress counts.
		s.coord.Rollback(orderID)
		util.ScansRejectedTotal.WithLabelValues(string(fulfillment.ScanRejectedDuplicate)).Inc()
		res.Outcome = fulfillment.ScanRejectedDuplicate
		return scanResponse(res), nil
	}

	util.ScansAcceptedTotal.Inc()
	s.logger.Info("Scan accepted",
		zap.String("order_id", orderID),
		zap.String("uid", res.Token.UID),
		zap.Int("remaining", fulfillment.Remaining(res.Order)))

	s.confirmAndPublish(ctx, res.Order)
	return scanResponse(res), nil
}

func scanResponse(res fulfillment.ScanResult) *ScanResponse {
	resp := &ScanResponse{
		Outcome:   res.Outcome,
		UID:       res.Token.UID,
		Remaining: fulfillment.Remaining(res.Order),
		CanShip:   fulfillment.CanShip(res.Order),
	}
	if res.Outcome == fulfillment.ScanRejectedWrongOrder {
		// Tell the operator which order the sticker belongs to.
		resp.TokenFor = res.Token.OrderID
	}
	return resp
}

// RequestStatusTransition moves an order through the status graph. The
// transition is validated locally, applied optimistically, then persisted
// with a guard on the previous status so concurrent writers serialize.
func (s *OrderService) RequestStatusTransition(ctx context.Context, orderID, target string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RequestStatusTransition")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if isDomainStoreErr(err) {
			return nil, err
		}
		return nil, s.storeUnavailable("get_order", err)
	}

	if !models.IsValidStatus(target) {
		util.TransitionsRejectedTotal.WithLabelValues("illegal").Inc()
		return nil, &fulfillment.IllegalTransitionError{From: order.Status, To: target}
	}

	updated, err := fulfillment.RequestTransition(*order, target)
	if err != nil {
		var notVerified *fulfillment.ShipmentNotVerifiedError
		if errors.As(err, &notVerified) {
			util.TransitionsRejectedTotal.WithLabelValues("not_verified").Inc()
		} else {
			util.TransitionsRejectedTotal.WithLabelValues("illegal").Inc()
		}
		s.logger.Info("Transition rejected",
			zap.String("order_id", orderID),
			zap.String("from", order.Status),
			zap.String("target", target),
			zap.Error(err))
		return nil, err
	}

	s.coord.ApplyLocal(updated)

	start := time.Now()
	pctx, cancel := s.persistCtx(ctx)
	defer cancel()
	err = s.store.UpdateOrderStatus(pctx, orderID, order.Status, target)
	util.PersistLatency.WithLabelValues("update_status").Observe(time.Since(start).Seconds())
	if err != nil {
		s.coord.Rollback(orderID)
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrOrderNotFound) {
			util.TransitionsRejectedTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
		return nil, s.storeUnavailable("update_status", err)
	}

	util.TransitionsTotal.WithLabelValues(order.Status, target).Inc()
	s.logger.Info("Order transitioned",
		zap.String("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", target))

	s.confirmAndPublish(ctx, updated)
	return &updated, nil
}

// GetOrderView reads the coordinator's merged cache, falling back to the
// Redis view cache and finally the store. Store reads seed the
// coordinator so later reads stay local.
func (s *OrderService) GetOrderView(ctx context.Context, orderID string) (coordinator.OrderView, error) {
	if view, ok := s.coord.Get(orderID); ok {
		return view, nil
	}

	if s.cache != nil {
		var view coordinator.OrderView
		ok, err := s.cache.GetCachedOrderView(ctx, orderID, &view)
		if err != nil {
			s.logger.Warn("View cache read failed", zap.Error(err))
		} else if ok {
			return view, nil
		}
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if isDomainStoreErr(err) {
			return coordinator.OrderView{}, err
		}
		return coordinator.OrderView{}, s.storeUnavailable("get_order", err)
	}

	view := s.coord.Confirm(*order)
	if s.cache != nil {
		if err := s.cache.CacheOrderView(ctx, orderID, view, s.opts.ViewCacheTTL); err != nil {
			s.logger.Warn("View cache write failed",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
	return view, nil
}

// UnitProgress is the operator-facing verification progress of an order.
type UnitProgress struct {
	OrderID           string             `json:"order_id"`
	DeclaredUnitCount int                `json:"declared_unit_count"`
	Units             []models.OrderUnit `json:"units"`
	Remaining         int                `json:"remaining"`
	CanShip           bool               `json:"can_ship"`
}

// GetUnitProgress lists the verified units of an order with the counts
// the operator UI renders.
func (s *OrderService) GetUnitProgress(ctx context.Context, orderID string) (*UnitProgress, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if isDomainStoreErr(err) {
			return nil, err
		}
		return nil, s.storeUnavailable("get_order", err)
	}

	units, err := s.store.GetOrderUnits(ctx, orderID)
	if err != nil {
		return nil, s.storeUnavailable("get_order_units", err)
	}

	return &UnitProgress{
		OrderID:           orderID,
		DeclaredUnitCount: order.DeclaredUnitCount,
		Units:             units,
		Remaining:         fulfillment.Remaining(*order),
		CanShip:           fulfillment.CanShip(*order),
	}, nil
}

// OpenScanSession pins an operator session to the order it is scanning.
func (s *OrderService) OpenScanSession(ctx context.Context, sessionID, orderID string) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		if isDomainStoreErr(err) {
			return err
		}
		return s.storeUnavailable("get_order", err)
	}
	return s.cache.SetScanSession(ctx, sessionID, orderID, s.opts.ScanSessionTTL)
}

// ResolveScanSession returns the order id a session has open, or "" when
// the session is unknown or sessions are disabled.
func (s *OrderService) ResolveScanSession(ctx context.Context, sessionID string) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	return s.cache.GetScanSession(ctx, sessionID)
}

// confirmAndPublish promotes the order to the confirmed baseline, mirrors
// it into the view cache and pushes a snapshot onto the feed. Publish
// failures are logged, not returned: the write itself committed, and the
// next write's snapshot supersedes the lost one.
func (s *OrderService) confirmAndPublish(ctx context.Context, order models.Order) {
	s.coord.Confirm(order)

	if s.cache != nil {
		view, _ := s.coord.Get(order.ID)
		if err := s.cache.CacheOrderView(ctx, order.ID, view, s.opts.ViewCacheTTL); err != nil {
			s.logger.Warn("View cache write failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	if s.publisher == nil {
		return
	}
	event := models.Snapshot(uuid.New().String(), order)
	if err := s.publisher.PublishSnapshot(ctx, event); err != nil {
		s.logger.Error("Failed to publish order snapshot",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return
	}
	util.SnapshotsPublishedTotal.Inc()
}

func (s *OrderService) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.PersistTimeout)
}

func (s *OrderService) storeUnavailable(op string, err error) error {
	util.StoreUnavailableTotal.WithLabelValues(op).Inc()
	return &fulfillment.StoreUnavailableError{Op: op, Err: err}
}

func isDomainStoreErr(err error) bool {
	return errors.Is(err, store.ErrOrderNotFound) ||
		errors.Is(err, store.ErrDeclaredCountAlreadySet)
}
