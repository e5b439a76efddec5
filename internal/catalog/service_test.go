package catalog_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

type memStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]catalog.Item
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]catalog.Item)}
}

func (m *memStore) ListPublic(_ context.Context, filter catalog.Filter) ([]catalog.Item, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Item
	for _, item := range m.items {
		if !item.Verified || item.Quantity <= 0 || item.ExpiryDate.Before(filter.Now) {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		out = append(out, item)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

func (m *memStore) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]catalog.Item, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Item
	for _, item := range m.items {
		if item.SellerID == sellerID {
			out = append(out, item)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Insert(_ context.Context, item catalog.Item) (catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) Update(_ context.Context, item catalog.Item) (catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) Delete(_ context.Context, id, sellerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.SellerID != sellerID {
		return catalog.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type allowAllSellers struct{}

func (allowAllSellers) IsVerified(context.Context, uuid.UUID) (bool, error) { return true, nil }

type blockedSellers struct{}

func (blockedSellers) IsVerified(context.Context, uuid.UUID) (bool, error) { return false, nil }

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store catalog.Store, gate catalog.SellerGate) *catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		Sellers:      gate,
		DefaultLimit: 20,
		MaxLimit:     100,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc
}

func TestListRecomputesPricing(t *testing.T) {
	store := newMemStore()
	sellerID := uuid.New()
	// Expires in 5 days: the hottest band, 60% off.
	fresh := uuid.New()
	store.items[fresh] = catalog.Item{
		ID: fresh, SellerID: sellerID, Name: "Lemon Soap", Category: "soaps",
		OriginalPrice: 150, ExpiryDate: testNow.Add(5 * 24 * time.Hour),
		Quantity: 10, Verified: true,
	}
	// Already expired: must not appear.
	stale := uuid.New()
	store.items[stale] = catalog.Item{
		ID: stale, SellerID: sellerID, Name: "Old Shampoo", Category: "shampoos",
		OriginalPrice: 200, ExpiryDate: testNow.Add(-24 * time.Hour),
		Quantity: 3, Verified: true,
	}

	svc := newTestService(t, store, allowAllSellers{})
	result, err := svc.List(context.Background(), catalog.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	view := result.Items[0]
	require.Equal(t, "Lemon Soap", view.Name)
	require.Equal(t, 60, view.DiscountPercent)
	require.Equal(t, int64(60), view.FinalPrice)
	require.Equal(t, pricing.TierHot, view.Tier)
	require.Equal(t, 5, view.DaysLeft)
}

func TestGetExpiredItemReturnsGone(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.items[id] = catalog.Item{
		ID: id, SellerID: uuid.New(), Name: "Past Detergent", Category: "detergents",
		OriginalPrice: 90, ExpiryDate: testNow.Add(-time.Hour), Quantity: 1, Verified: true,
	}
	svc := newTestService(t, store, allowAllSellers{})

	_, err := svc.Get(context.Background(), id)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ITEM_EXPIRED", appErr.Code)
	require.Equal(t, 410, appErr.HTTPStatus)
}

func TestCreateRequiresVerifiedSeller(t *testing.T) {
	svc := newTestService(t, newMemStore(), blockedSellers{})
	_, err := svc.CreateForSeller(context.Background(), uuid.New(), catalog.CreateInput{
		Name: "Mint Toothpaste", Category: "toothpaste", OriginalPrice: 85,
		ExpiryDate: testNow.Add(10 * 24 * time.Hour), Quantity: 4,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SELLER_NOT_VERIFIED", appErr.Code)
}

func TestCreateRejectsPastExpiry(t *testing.T) {
	svc := newTestService(t, newMemStore(), allowAllSellers{})
	_, err := svc.CreateForSeller(context.Background(), uuid.New(), catalog.CreateInput{
		Name: "Stale Cleaner", Category: "cleaners", OriginalPrice: 50,
		ExpiryDate: testNow.Add(-48 * time.Hour), Quantity: 2,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestBulkCreateMarksItemsUnverified(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, allowAllSellers{})
	sellerID := uuid.New()

	views, err := svc.BulkCreateForSeller(context.Background(), sellerID, []catalog.CreateInput{
		{Name: "Baby Lotion", Category: "baby-care", OriginalPrice: 120, ExpiryDate: testNow.Add(20 * 24 * time.Hour), Quantity: 6},
		{Name: "Dish Gel", Category: "dishwash", OriginalPrice: 60, ExpiryDate: testNow.Add(9 * 24 * time.Hour), Quantity: 8},
	})
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		require.False(t, v.Verified)
	}

	// Unverified items stay out of the public listing.
	result, err := svc.List(context.Background(), catalog.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Empty(t, result.Items)
}

func TestBulkCreateReportsOffendingIndex(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, allowAllSellers{})

	_, err := svc.BulkCreateForSeller(context.Background(), uuid.New(), []catalog.CreateInput{
		{Name: "Baby Lotion", Category: "baby-care", OriginalPrice: 120, ExpiryDate: testNow.Add(20 * 24 * time.Hour), Quantity: 6},
		{Name: "Dish Gel", Category: "fireworks", OriginalPrice: 60, ExpiryDate: testNow.Add(9 * 24 * time.Hour), Quantity: 8},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1, details["index"])
	require.Equal(t, "category", details["field"])
}

func TestUpdateForSellerEnforcesOwnership(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	id := uuid.New()
	store.items[id] = catalog.Item{
		ID: id, SellerID: owner, Name: "Rose Soap", Category: "soaps",
		OriginalPrice: 70, ExpiryDate: testNow.Add(12 * 24 * time.Hour), Quantity: 5, Verified: true,
	}
	svc := newTestService(t, store, allowAllSellers{})

	intruder := uuid.New()
	newName := "Hijacked"
	_, err := svc.UpdateForSeller(context.Background(), intruder, id, catalog.UpdateInput{Name: &newName})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	qty := 9
	view, err := svc.UpdateForSeller(context.Background(), owner, id, catalog.UpdateInput{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, 9, view.Quantity)
}

func TestParseListParams(t *testing.T) {
	svc := newTestService(t, newMemStore(), allowAllSellers{})

	params, err := svc.ParseListParams(url.Values{"category": {"soaps"}, "page": {"2"}, "limit": {"500"}, "sort": {"price:asc"}})
	require.NoError(t, err)
	require.Equal(t, 2, params.Page)
	require.Equal(t, 100, params.Limit)
	require.Equal(t, "price:asc", params.Sort)

	_, err = svc.ParseListParams(url.Values{"category": {"electronics"}})
	require.Error(t, err)

	_, err = svc.ParseListParams(url.Values{"page": {"zero"}})
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
}
