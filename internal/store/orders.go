package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-service/internal/models"
)

var (
	// ErrOrderNotFound is returned when an order id matches no row.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDeclaredCountAlreadySet is returned when unit tracking was
	// already enabled with a different count. Re-enabling with the same
	// count is an idempotent no-op, not an error.
	ErrDeclaredCountAlreadySet = errors.New("declared unit count already set")

	// ErrStatusConflict is returned when a guarded status update finds
	// the row no longer in the expected status. A concurrent writer won.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// orderRow mirrors the orders table. The verified set lives in the
// order_units table; loadOrder is the single place that folds the two
// into the canonical models.Order shape.
type orderRow struct {
	ID                string       `db:"id"`
	BuyerID           string       `db:"buyer_id"`
	Status            string       `db:"status"`
	DeclaredUnitCount int          `db:"declared_unit_count"`
	CreatedAt         sql.NullTime `db:"created_at"`
	UpdatedAt         sql.NullTime `db:"updated_at"`
}

func (r orderRow) toModel(verified []string) models.Order {
	order := models.Order{
		ID:                r.ID,
		BuyerID:           r.BuyerID,
		Status:            r.Status,
		DeclaredUnitCount: r.DeclaredUnitCount,
		VerifiedUnitIDs:   verified,
	}
	if r.CreatedAt.Valid {
		order.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		order.UpdatedAt = r.UpdatedAt.Time
	}
	return order
}

// CreateOrder inserts a new order row in Pending status.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, buyer_id, status, declared_unit_count)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		order.ID, order.BuyerID, order.Status, order.DeclaredUnitCount)
	return row.Scan(&order.CreatedAt, &order.UpdatedAt)
}

// GetOrderByID loads an order row together with its verified unit set.
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var r orderRow
	err := s.db.GetContext(ctx, &r, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	verified, err := s.getVerifiedUnits(ctx, id)
	if err != nil {
		return nil, err
	}

	order := r.toModel(verified)
	return &order, nil
}

// GetOrdersByBuyerID retrieves orders for a buyer, newest first, without
// their unit sets.
func (s *Store) GetOrdersByBuyerID(ctx context.Context, buyerID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.toModel(nil))
	}
	return orders, nil
}

func (s *Store) getVerifiedUnits(ctx context.Context, orderID string) ([]string, error) {
	var uids []string
	err := s.db.SelectContext(ctx, &uids,
		"SELECT uid FROM order_units WHERE order_id = $1 ORDER BY scanned_at, uid", orderID)
	return uids, err
}

// GetOrderUnits retrieves the verified unit rows for an order.
func (s *Store) GetOrderUnits(ctx context.Context, orderID string) ([]models.OrderUnit, error) {
	var units []models.OrderUnit
	err := s.db.SelectContext(ctx, &units,
		"SELECT * FROM order_units WHERE order_id = $1 ORDER BY scanned_at, uid", orderID)
	return units, err
}

// AddVerifiedUnit appends uid to the order's verified set if absent.
// The ON CONFLICT guard is what makes concurrent scans of the same
// sticker safe: only one writer observes added = true.
func (s *Store) AddVerifiedUnit(ctx context.Context, orderID, uid string) (added bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO order_units (order_id, uid) VALUES ($1, $2)
		 ON CONFLICT (order_id, uid) DO NOTHING`,
		orderID, uid)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if n > 0 {
		_, err = s.db.ExecContext(ctx,
			"UPDATE orders SET updated_at = NOW() WHERE id = $1", orderID)
		if err != nil {
			return true, err
		}
	}
	return n > 0, nil
}

// SetDeclaredUnitCount enables unit tracking for an order. The count can
// only be set once; calling again with the same count is a no-op, a
// different count returns ErrDeclaredCountAlreadySet.
func (s *Store) SetDeclaredUnitCount(ctx context.Context, orderID string, count int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET declared_unit_count = $2, updated_at = NOW()
		 WHERE id = $1 AND declared_unit_count IN (0, $2)`,
		orderID, count)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing order from a count that was already set.
	var exists bool
	err = s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return ErrDeclaredCountAlreadySet
}

// UpdateOrderStatus moves an order from one status to another with a
// guard on the current status, so conflicting writers serialize on the
// row instead of clobbering each other.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2",
		orderID, from, to)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return ErrStatusConflict
}
