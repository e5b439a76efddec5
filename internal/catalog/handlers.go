package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
)

// Handler exposes the public marketplace endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Items handles GET /api/v1/items with filters, sorting, and pagination.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// ItemDetail handles GET /api/v1/items/{id}.
func (h *Handler) ItemDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// SellerHandler exposes listing management for authenticated sellers.
type SellerHandler struct {
	service *Service
}

// NewSellerHandler constructs a SellerHandler.
func NewSellerHandler(service *Service) *SellerHandler {
	return &SellerHandler{service: service}
}

// Mine handles GET /api/v1/seller/items.
func (h *SellerHandler) Mine(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := sellerFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, limit := common.ParsePagination(r, h.service.defaultLimit, h.service.maxLimit)
	result, err := h.service.ListForSeller(r.Context(), sellerID, page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// Create handles POST /api/v1/seller/items.
func (h *SellerHandler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := sellerFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in CreateInput
	if err := common.DecodeAndValidate(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.CreateForSeller(r.Context(), sellerID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// BulkCreate handles POST /api/v1/seller/items/bulk with a JSON array body.
func (h *SellerHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := sellerFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in struct {
		Items []CreateInput `json:"items" validate:"required,dive"`
	}
	if err := common.DecodeAndValidate(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	views, err := h.service.BulkCreateForSeller(r.Context(), sellerID, in.Items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": views, "count": len(views)})
}

// Update handles PATCH /api/v1/seller/items/{id}.
func (h *SellerHandler) Update(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := sellerFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var in UpdateInput
	if err := common.DecodeAndValidate(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.UpdateForSeller(r.Context(), sellerID, id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Delete handles DELETE /api/v1/seller/items/{id}.
func (h *SellerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := sellerFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.service.DeleteForSeller(r.Context(), sellerID, id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

func sellerFrom(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
