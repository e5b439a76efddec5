package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// PGStore persists items in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
	// Now overrides the clock used to seed the derived sort columns.
	Now func() time.Time
}

func (s PGStore) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const itemColumns = `id, seller_id, name, description, category, original_price,
	expiry_date, quantity, image_url, sku, verified, created_at, updated_at`

// ListPublic returns verified, in-stock, unexpired items matching the filter,
// plus the total count before pagination.
func (s PGStore) ListPublic(ctx context.Context, filter Filter) ([]Item, int64, error) {
	where := []string{"verified = TRUE", "quantity > 0", "expiry_date >= $1"}
	args := []any{filter.Now}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM products WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order := orderClause(filter.Sort)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		itemColumns, clause, order, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID returns a single item regardless of its derived state.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Item, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+itemColumns+" FROM products WHERE id = $1", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("get product: %w", err)
	}
	return item, nil
}

// ListBySeller returns the seller's items newest first.
func (s PGStore) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]Item, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM products WHERE seller_id = $1", sellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count seller products: %w", err)
	}
	rows, err := s.Pool.Query(ctx,
		"SELECT "+itemColumns+" FROM products WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller products: %w", err)
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Insert stores a new item. Derived columns start from the current quote so
// sorting works before the first reprice sweep.
func (s PGStore) Insert(ctx context.Context, item Item) (Item, error) {
	derived := derivedOf(item, s.clock())
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO products (
			seller_id, name, description, category, original_price, expiry_date,
			quantity, image_url, sku, verified, discount_percent, final_price, tier
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+itemColumns,
		item.SellerID, item.Name, item.Description, item.Category, int64(item.OriginalPrice),
		item.ExpiryDate, item.Quantity, item.ImageURL, item.SKU, item.Verified,
		derived.percent, int64(derived.final), string(derived.tier))
	stored, err := scanItem(row)
	if err != nil {
		return Item{}, fmt.Errorf("insert product: %w", err)
	}
	return stored, nil
}

// Update rewrites the mutable columns and refreshes the derived ones.
func (s PGStore) Update(ctx context.Context, item Item) (Item, error) {
	derived := derivedOf(item, s.clock())
	row := s.Pool.QueryRow(ctx, `
		UPDATE products SET
			name = $2, description = $3, category = $4, original_price = $5,
			expiry_date = $6, quantity = $7, image_url = $8,
			discount_percent = $9, final_price = $10, tier = $11, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Description, item.Category, int64(item.OriginalPrice),
		item.ExpiryDate, item.Quantity, item.ImageURL,
		derived.percent, int64(derived.final), string(derived.tier))
	stored, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("update product: %w", err)
	}
	return stored, nil
}

// Delete removes an item owned by the seller.
func (s PGStore) Delete(ctx context.Context, id, sellerID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, "DELETE FROM products WHERE id = $1 AND seller_id = $2", id, sellerID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns every verified in-stock item for the reprice sweep.
func (s PGStore) ListActive(ctx context.Context) ([]Item, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT "+itemColumns+" FROM products WHERE verified = TRUE AND quantity > 0 ORDER BY expiry_date ASC")
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateDerived rewrites only the stored pricing columns.
func (s PGStore) UpdateDerived(ctx context.Context, id uuid.UUID, percent int, final pricing.Money, tier pricing.Tier) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE products SET discount_percent = $2, final_price = $3, tier = $4, updated_at = now()
		WHERE id = $1`, id, percent, int64(final), string(tier))
	if err != nil {
		return fmt.Errorf("update derived columns: %w", err)
	}
	return nil
}

type derived struct {
	percent int
	final   pricing.Money
	tier    pricing.Tier
}

func derivedOf(item Item, now time.Time) derived {
	quote, err := pricing.QuoteItem(now, item.OriginalPrice, item.ExpiryDate)
	if err != nil {
		return derived{percent: 100, final: 0, tier: pricing.TierExpired}
	}
	return derived{percent: quote.Percent, final: quote.FinalPrice, tier: quote.Tier}
}

func orderClause(sort string) string {
	switch sort {
	case "price:asc":
		return "final_price ASC, created_at DESC"
	case "price:desc":
		return "final_price DESC, created_at DESC"
	case "discount":
		return "discount_percent DESC, expiry_date ASC"
	case "newest":
		return "created_at DESC"
	default: // soonest expiry first carries the deepest discounts to the top
		return "expiry_date ASC, created_at DESC"
	}
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item  Item
		price int64
	)
	err := row.Scan(
		&item.ID, &item.SellerID, &item.Name, &item.Description, &item.Category,
		&price, &item.ExpiryDate, &item.Quantity, &item.ImageURL, &item.SKU,
		&item.Verified, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Item{}, err
	}
	item.OriginalPrice = pricing.Money(price)
	return item, nil
}
