package shipment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nearexpiry/backend-nearexpiry/internal/auth"
	"github.com/nearexpiry/backend-nearexpiry/internal/common"
)

// Handler exposes shipment endpoints for partners and admins.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid4"`
}

// Create handles POST /api/v1/admin/shipments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	sh, err := h.service.CreateForOrder(r.Context(), orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sh})
}

type assignRequest struct {
	PartnerID string `json:"partnerId" validate:"required,uuid4"`
}

// Assign handles POST /api/v1/admin/shipments/{id}/assign.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipment id", nil)
		return
	}
	var req assignRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid partner id", nil)
		return
	}
	sh, err := h.service.AssignPartner(r.Context(), id, partnerID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sh})
}

type advanceRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// Advance handles PATCH /api/v1/shipments/{id}/status.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := userFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipment id", nil)
		return
	}
	var req advanceRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	role, _ := common.UserRole(r.Context())
	sh, err := h.service.Advance(r.Context(), id, actorID, role == auth.RoleAdmin, req.Status, req.Note)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sh})
}

// Mine handles GET /api/v1/shipments (partner queue).
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := userFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	list, total, err := h.service.ForPartner(r.Context(), partnerID, perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if list == nil {
		list = []Shipment{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// ByOrder handles GET /api/v1/orders/{id}/shipment.
func (h *Handler) ByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	sh, err := h.service.ByOrder(r.Context(), orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sh})
}

func userFrom(r *http.Request) (uuid.UUID, bool) {
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
