package seller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists verifications in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const verificationColumns = `id, seller_id, business_name, license_number, document_url,
	status, reason, reviewed_by, submitted_at, reviewed_at`

// Upsert inserts the application, or resets an existing one back to pending.
func (s PGStore) Upsert(ctx context.Context, v Verification) (Verification, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO seller_verifications (
			seller_id, business_name, license_number, document_url, status, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (seller_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			license_number = EXCLUDED.license_number,
			document_url = EXCLUDED.document_url,
			status = EXCLUDED.status,
			reason = '',
			reviewed_by = NULL,
			reviewed_at = NULL,
			submitted_at = EXCLUDED.submitted_at
		RETURNING `+verificationColumns,
		v.SellerID, v.BusinessName, v.LicenseNumber, v.DocumentURL, v.Status, v.SubmittedAt)
	return scanVerification(row)
}

// GetBySeller returns the seller's verification record.
func (s PGStore) GetBySeller(ctx context.Context, sellerID uuid.UUID) (Verification, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+verificationColumns+" FROM seller_verifications WHERE seller_id = $1", sellerID)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Verification{}, ErrNotFound
		}
		return Verification{}, err
	}
	return v, nil
}

// GetByID returns one verification by its own id.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Verification, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+verificationColumns+" FROM seller_verifications WHERE id = $1", id)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Verification{}, ErrNotFound
		}
		return Verification{}, err
	}
	return v, nil
}

// ListByStatus returns applications in one status, oldest first.
func (s PGStore) ListByStatus(ctx context.Context, status string, limit, offset int) ([]Verification, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM seller_verifications WHERE status = $1", status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count verifications: %w", err)
	}
	rows, err := s.Pool.Query(ctx,
		"SELECT "+verificationColumns+" FROM seller_verifications WHERE status = $1 ORDER BY submitted_at ASC LIMIT $2 OFFSET $3",
		status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var list []Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan verification: %w", err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate verifications: %w", err)
	}
	return list, total, nil
}

// SetDecision records the admin's ruling.
func (s PGStore) SetDecision(ctx context.Context, id uuid.UUID, status, reason string, reviewedBy uuid.UUID, reviewedAt time.Time) (Verification, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE seller_verifications SET
			status = $2, reason = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1
		RETURNING `+verificationColumns,
		id, status, reason, reviewedBy, reviewedAt)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Verification{}, ErrNotFound
		}
		return Verification{}, err
	}
	return v, nil
}

func scanVerification(row pgx.Row) (Verification, error) {
	var v Verification
	err := row.Scan(
		&v.ID, &v.SellerID, &v.BusinessName, &v.LicenseNumber, &v.DocumentURL,
		&v.Status, &v.Reason, &v.ReviewedBy, &v.SubmittedAt, &v.ReviewedAt,
	)
	if err != nil {
		return Verification{}, err
	}
	return v, nil
}
