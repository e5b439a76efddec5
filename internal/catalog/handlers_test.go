package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
)

type itemsResponse struct {
	Data       []catalog.View `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

func TestItemsEndpoint(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.items[id] = catalog.Item{
		ID: id, SellerID: uuid.New(), Name: "Herbal Shampoo", Category: "shampoos",
		OriginalPrice: 85, ExpiryDate: testNow.Add(10 * 24 * time.Hour),
		Quantity: 7, Verified: true,
	}
	svc := newTestService(t, store, allowAllSellers{})
	handler := catalog.NewHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	handler.Items(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	var resp itemsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	// 10 days out lands in the 40% band: 85 -> 51.
	require.Equal(t, int64(51), resp.Data[0].FinalPrice)
	require.Equal(t, 40, resp.Data[0].DiscountPercent)
	require.Equal(t, 1, resp.Pagination.TotalItems)
}

func TestItemDetailEndpoint(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.items[id] = catalog.Item{
		ID: id, SellerID: uuid.New(), Name: "Bar Soap", Category: "soaps",
		OriginalPrice: 100, ExpiryDate: testNow.Add(25 * 24 * time.Hour),
		Quantity: 2, Verified: true,
	}
	svc := newTestService(t, store, allowAllSellers{})
	handler := catalog.NewHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/"+id.String(), nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	handler.ItemDetail(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data catalog.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(80), resp.Data.FinalPrice)
	require.Equal(t, 20, resp.Data.DiscountPercent)
	require.Equal(t, "good-deal", string(resp.Data.Tier))
}

func TestItemDetailInvalidID(t *testing.T) {
	svc := newTestService(t, newMemStore(), allowAllSellers{})
	handler := catalog.NewHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/not-a-uuid", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	handler.ItemDetail(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
