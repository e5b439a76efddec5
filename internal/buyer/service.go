package buyer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
)

// Stats is the buyer's cumulative sustainability ledger. The counters only
// ever grow: cancelling an order keeps the impact already granted.
type Stats struct {
	GreenPoints      int64   `json:"greenPoints"`
	WasteSavedKg     float64 `json:"wasteSavedKg"`
	CarbonSavedKg    float64 `json:"carbonSavedKg"`
	OrdersCount      int64   `json:"ordersCount"`
	WasteSavedGrams  int64   `json:"wasteSavedGrams"`
	CarbonSavedGrams int64   `json:"carbonSavedGrams"`
}

// Store abstracts the impact counters.
type Store interface {
	GetImpact(ctx context.Context, userID uuid.UUID) (Stats, error)
}

// PGStore reads the counters from the users table.
type PGStore struct {
	Pool *pgxpool.Pool
}

// GetImpact loads the cumulative impact columns for one user.
func (s PGStore) GetImpact(ctx context.Context, userID uuid.UUID) (Stats, error) {
	var stats Stats
	err := s.Pool.QueryRow(ctx, `
		SELECT green_points, waste_saved_grams, carbon_saved_grams, orders_count
		FROM users WHERE id = $1`, userID,
	).Scan(&stats.GreenPoints, &stats.WasteSavedGrams, &stats.CarbonSavedGrams, &stats.OrdersCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stats{}, fmt.Errorf("user not found: %w", err)
		}
		return Stats{}, fmt.Errorf("get impact stats: %w", err)
	}
	stats.WasteSavedKg = float64(stats.WasteSavedGrams) / 1000
	stats.CarbonSavedKg = float64(stats.CarbonSavedGrams) / 1000
	return stats, nil
}

// Handler exposes the buyer impact endpoint.
type Handler struct {
	Store Store
}

// Impact handles GET /api/v1/users/me/impact.
func (h Handler) Impact(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	stats, err := h.Store.GetImpact(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stats})
}
