package shipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists shipments in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const shipmentColumns = "id, order_id, partner_id, status, note, created_at, updated_at"

// Insert opens a new shipment.
func (s PGStore) Insert(ctx context.Context, sh Shipment) (Shipment, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO shipments (order_id, status, note)
		VALUES ($1, $2, $3)
		RETURNING `+shipmentColumns,
		sh.OrderID, sh.Status, sh.Note)
	return scanShipment(row)
}

// GetByOrder returns the shipment attached to an order.
func (s PGStore) GetByOrder(ctx context.Context, orderID uuid.UUID) (Shipment, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+shipmentColumns+" FROM shipments WHERE order_id = $1", orderID)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, err
	}
	return sh, nil
}

// GetByID returns one shipment.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Shipment, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+shipmentColumns+" FROM shipments WHERE id = $1", id)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, err
	}
	return sh, nil
}

// AssignPartner sets the delivery partner.
func (s PGStore) AssignPartner(ctx context.Context, id, partnerID uuid.UUID) (Shipment, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE shipments SET partner_id = $2, updated_at = now() WHERE id = $1
		RETURNING `+shipmentColumns,
		id, partnerID)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, err
	}
	return sh, nil
}

// Advance moves the shipment to a strictly later status. The rank guard
// lives in the WHERE clause so concurrent updates cannot leapfrog backward.
func (s PGStore) Advance(ctx context.Context, id uuid.UUID, target, note string) (Shipment, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE shipments SET status = $2, note = $3, updated_at = now()
		WHERE id = $1 AND array_position($4::text[], status) < array_position($4::text[], $2)
		RETURNING `+shipmentColumns,
		id, target, note, []string{StatusPending, StatusPacked, StatusInTransit, StatusDelivered})
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from a refused transition.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return Shipment{}, getErr
			}
			return Shipment{}, ErrInvalidTransition
		}
		return Shipment{}, err
	}
	return sh, nil
}

// ListForPartner returns the partner's shipments newest first.
func (s PGStore) ListForPartner(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]Shipment, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM shipments WHERE partner_id = $1", partnerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count shipments: %w", err)
	}
	rows, err := s.Pool.Query(ctx,
		"SELECT "+shipmentColumns+" FROM shipments WHERE partner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		partnerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var list []Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan shipment: %w", err)
		}
		list = append(list, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate shipments: %w", err)
	}
	return list, total, nil
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var sh Shipment
	err := row.Scan(&sh.ID, &sh.OrderID, &sh.PartnerID, &sh.Status, &sh.Note, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return Shipment{}, err
	}
	return sh, nil
}
