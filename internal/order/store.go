package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// PGStore persists orders in Postgres.
type PGStore struct {
	Pool  *pgxpool.Pool
	Items catalog.PGStore
}

// GetItem loads a catalog item for quoting.
func (s PGStore) GetItem(ctx context.Context, id uuid.UUID) (catalog.Item, error) {
	return s.Items.GetByID(ctx, id)
}

// CreateOrder writes the order in one transaction. The conditional UPDATE is
// the stock guard: it only matches while enough stock remains, so concurrent
// checkouts for the last unit cannot both pass.
func (s PGStore) CreateOrder(ctx context.Context, draft Draft) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, line := range draft.Lines {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = now()
			WHERE id = $1 AND quantity >= $2`,
			line.ItemID, line.Quantity)
		if err != nil {
			return Order{}, fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return Order{}, ErrInsufficientStock
		}
	}

	var placed Order
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			buyer_id, status, total_amount, green_points, waste_saved_grams,
			carbon_saved_grams, delivery_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, buyer_id, status, total_amount, green_points,
			waste_saved_grams, carbon_saved_grams, delivery_address, created_at, updated_at`,
		draft.BuyerID, string(StatusPending), int64(draft.TotalAmount),
		draft.Impact.GreenPoints, draft.Impact.WasteSavedGrams,
		draft.Impact.CarbonSavedGrams, draft.DeliveryAddress,
	).Scan(
		&placed.ID, &placed.BuyerID, &placed.Status, &placed.TotalAmount,
		&placed.GreenPoints, &placed.WasteSavedGrams, &placed.CarbonSavedGrams,
		&placed.DeliveryAddress, &placed.CreatedAt, &placed.UpdatedAt,
	)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range draft.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (
				order_id, item_id, seller_id, name, quantity,
				unit_price, discount_percent, subtotal
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			placed.ID, line.ItemID, line.SellerID, line.Name, line.Quantity,
			int64(line.UnitPrice), line.DiscountPercent, int64(line.Subtotal))
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			green_points = green_points + $2,
			waste_saved_grams = waste_saved_grams + $3,
			carbon_saved_grams = carbon_saved_grams + $4,
			orders_count = orders_count + 1,
			updated_at = now()
		WHERE id = $1`,
		draft.BuyerID, draft.Impact.GreenPoints,
		draft.Impact.WasteSavedGrams, draft.Impact.CarbonSavedGrams)
	if err != nil {
		return Order{}, fmt.Errorf("credit buyer impact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	placed.Items = draft.Lines
	return placed, nil
}

// GetOrder loads an order with its lines.
func (s PGStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	placed, err := scanOrder(s.Pool.QueryRow(ctx, orderSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	items, err := s.listItems(ctx, id)
	if err != nil {
		return Order{}, err
	}
	placed.Items = items
	return placed, nil
}

// ListByBuyer returns the buyer's orders newest first, lines included.
func (s PGStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM orders WHERE buyer_id = $1", buyerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Pool.Query(ctx,
		orderSelect+" WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		buyerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		placed, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, placed)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	for i := range orders {
		items, err := s.listItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}
	return orders, total, nil
}

// Cancel flips a pending or confirmed order to cancelled and puts the stock
// back, all in one transaction.
func (s PGStore) Cancel(ctx context.Context, id, buyerID uuid.UUID) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var current Status
	err = tx.QueryRow(ctx,
		"SELECT status FROM orders WHERE id = $1 AND buyer_id = $2 FOR UPDATE",
		id, buyerID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	if !Cancellable(current) {
		return Order{}, ErrInvalidState
	}

	_, err = tx.Exec(ctx, `
		UPDATE products p SET quantity = p.quantity + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.item_id = p.id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("restore stock: %w", err)
	}

	cancelled, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		RETURNING id, buyer_id, status, total_amount, green_points,
			waste_saved_grams, carbon_saved_grams, delivery_address, created_at, updated_at`,
		id, string(StatusCancelled)))
	if err != nil {
		return Order{}, fmt.Errorf("cancel order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	items, err := s.listItems(ctx, id)
	if err != nil {
		return Order{}, err
	}
	cancelled.Items = items
	return cancelled, nil
}

// UpdateStatus applies a strictly forward transition, or a cancellation from
// a cancellable state.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var current Status
	err = tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	if target == StatusCancelled {
		if !Cancellable(current) {
			return Order{}, ErrInvalidState
		}
	} else if Rank(current) >= Rank(target) || Rank(current) < 0 {
		return Order{}, ErrInvalidState
	}

	updated, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		RETURNING id, buyer_id, status, total_amount, green_points,
			waste_saved_grams, carbon_saved_grams, delivery_address, created_at, updated_at`,
		id, string(target)))
	if err != nil {
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	items, err := s.listItems(ctx, id)
	if err != nil {
		return Order{}, err
	}
	updated.Items = items
	return updated, nil
}

const orderSelect = `SELECT id, buyer_id, status, total_amount, green_points,
	waste_saved_grams, carbon_saved_grams, delivery_address, created_at, updated_at
	FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		placed Order
		total  int64
		status string
	)
	err := row.Scan(
		&placed.ID, &placed.BuyerID, &status, &total, &placed.GreenPoints,
		&placed.WasteSavedGrams, &placed.CarbonSavedGrams, &placed.DeliveryAddress,
		&placed.CreatedAt, &placed.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	placed.Status = Status(status)
	placed.TotalAmount = pricing.Money(total)
	return placed, nil
}

func (s PGStore) listItems(ctx context.Context, orderID uuid.UUID) ([]LineItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT item_id, seller_id, name, quantity, unit_price, discount_percent, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY name`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var (
			line     LineItem
			unit     int64
			subtotal int64
		)
		if err := rows.Scan(&line.ItemID, &line.SellerID, &line.Name, &line.Quantity, &unit, &line.DiscountPercent, &subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		line.UnitPrice = pricing.Money(unit)
		line.Subtotal = pricing.Money(subtotal)
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}
