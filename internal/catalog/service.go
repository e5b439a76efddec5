package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// ErrNotFound is returned when no item matches the requested id.
var ErrNotFound = errors.New("catalog: item not found")

// Store abstracts item persistence.
type Store interface {
	ListPublic(ctx context.Context, filter Filter) ([]Item, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (Item, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]Item, int64, error)
	Insert(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, id, sellerID uuid.UUID) error
}

// SellerGate answers whether a seller account has passed verification.
type SellerGate interface {
	IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

// Filter captures the persistence-level listing filters. Sorting uses the
// stored derived columns; the response payload always carries freshly
// recomputed prices.
type Filter struct {
	Query    string
	Category string
	Sort     string
	Limit    int
	Offset   int
	Now      time.Time
}

// ListParams captures filters for the public marketplace listing.
type ListParams struct {
	Query    string
	Category string
	Sort     string
	Page     int
	Limit    int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []View
	Total int64
	Page  int
	Limit int
}

// Service orchestrates listing queries, price recomputation, and caching.
type Service struct {
	store        Store
	sellers      SellerGate
	cache        *Cache
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Sellers      SellerGate
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        cfg.Store,
		sellers:      cfg.Sellers,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if params.Category != "" && !ValidCategory(params.Category) {
		return params, badRequest("category", "unknown category", nil)
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// List returns discounted listings with pagination metadata. Expired or
// out-of-stock items never appear; prices and tiers are recomputed against
// the current clock rather than read from the stored columns.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	now := s.now()
	key, cacheable := s.listCacheKey(params)
	if cacheable {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	filter := Filter{
		Query:    params.Query,
		Category: params.Category,
		Sort:     params.Sort,
		Limit:    params.Limit,
		Offset:   (params.Page - 1) * params.Limit,
		Now:      now,
	}
	items, total, err := s.store.ListPublic(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list items: %w", err)
	}
	views := make([]View, 0, len(items))
	for _, item := range items {
		view, err := s.viewOf(item, now)
		if err != nil {
			// The store filter and this recomputation share a clock edge;
			// an item that expired between the two just drops out.
			continue
		}
		views = append(views, view)
	}
	result := ListResult{Items: views, Total: total, Page: params.Page, Limit: params.Limit}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: views, Total: total})
	}
	return result, nil
}

// Get returns a single listing with freshly computed pricing.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, notFound(err)
		}
		return View{}, fmt.Errorf("get item: %w", err)
	}
	view, err := s.viewOf(item, s.now())
	if err != nil {
		return View{}, err
	}
	return view, nil
}

// CreateInput carries the fields a seller submits for a new listing.
type CreateInput struct {
	Name          string    `json:"name" validate:"required,min=2,max=200"`
	Description   string    `json:"description" validate:"max=2000"`
	Category      string    `json:"category" validate:"required"`
	OriginalPrice int64     `json:"originalPrice" validate:"required,gt=0"`
	ExpiryDate    time.Time `json:"expiryDate" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
	ImageURL      string    `json:"image" validate:"omitempty,url"`
	SKU           string    `json:"sku" validate:"max=64"`
}

// CreateForSeller validates and stores a new listing for a verified seller.
func (s *Service) CreateForSeller(ctx context.Context, sellerID uuid.UUID, in CreateInput) (View, error) {
	if err := s.requireVerified(ctx, sellerID); err != nil {
		return View{}, err
	}
	item, err := s.itemFromInput(sellerID, in)
	if err != nil {
		return View{}, err
	}
	item.Verified = true
	stored, err := s.store.Insert(ctx, item)
	if err != nil {
		return View{}, fmt.Errorf("insert item: %w", err)
	}
	s.invalidateLists(ctx)
	return s.viewOf(stored, s.now())
}

// BulkCreateForSeller stores a batch of listings in one call. Bulk-uploaded
// items enter the catalog unverified and stay hidden from the marketplace
// until an admin reviews them.
func (s *Service) BulkCreateForSeller(ctx context.Context, sellerID uuid.UUID, inputs []CreateInput) ([]View, error) {
	if err := s.requireVerified(ctx, sellerID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, badRequest("items", "at least one item is required", nil)
	}
	if len(inputs) > 500 {
		return nil, badRequest("items", "at most 500 items per upload", nil)
	}
	now := s.now()
	views := make([]View, 0, len(inputs))
	for i, in := range inputs {
		item, err := s.itemFromInput(sellerID, in)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				if details, ok := appErr.Details.(map[string]any); ok {
					details["index"] = i
				}
			}
			return nil, err
		}
		item.Verified = false
		stored, err := s.store.Insert(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		view, err := s.viewOf(stored, now)
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	s.invalidateLists(ctx)
	return views, nil
}

// UpdateInput carries the mutable listing fields. Nil pointers leave the
// stored value untouched.
type UpdateInput struct {
	Name          *string    `json:"name" validate:"omitempty,min=2,max=200"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	Category      *string    `json:"category"`
	OriginalPrice *int64     `json:"originalPrice" validate:"omitempty,gt=0"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	Quantity      *int       `json:"quantity" validate:"omitempty,gte=0"`
	ImageURL      *string    `json:"image" validate:"omitempty,url"`
}

// UpdateForSeller applies a partial update to a listing the seller owns.
func (s *Service) UpdateForSeller(ctx context.Context, sellerID, id uuid.UUID, in UpdateInput) (View, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return View{}, notFound(err)
		}
		return View{}, fmt.Errorf("get item: %w", err)
	}
	if item.SellerID != sellerID {
		return View{}, &common.AppError{Code: "FORBIDDEN", Message: "listing belongs to another seller", HTTPStatus: http.StatusForbidden}
	}
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		if !ValidCategory(*in.Category) {
			return View{}, badRequest("category", "unknown category", nil)
		}
		item.Category = *in.Category
	}
	if in.OriginalPrice != nil {
		if *in.OriginalPrice <= 0 {
			return View{}, badRequest("originalPrice", "originalPrice must be positive", nil)
		}
		item.OriginalPrice = pricing.Money(*in.OriginalPrice)
	}
	if in.ExpiryDate != nil {
		item.ExpiryDate = *in.ExpiryDate
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	if in.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	stored, err := s.store.Update(ctx, item)
	if err != nil {
		return View{}, fmt.Errorf("update item: %w", err)
	}
	s.invalidateLists(ctx)
	return s.viewOf(stored, s.now())
}

// DeleteForSeller removes a listing the seller owns.
func (s *Service) DeleteForSeller(ctx context.Context, sellerID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id, sellerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(err)
		}
		return fmt.Errorf("delete item: %w", err)
	}
	s.invalidateLists(ctx)
	return nil
}

// ListForSeller returns the seller's own listings, expired ones included so
// the dashboard can show what needs pulling.
func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, page, limit int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	items, total, err := s.store.ListBySeller(ctx, sellerID, limit, (page-1)*limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list seller items: %w", err)
	}
	now := s.now()
	views := make([]View, 0, len(items))
	for _, item := range items {
		views = append(views, s.sellerViewOf(item, now))
	}
	return ListResult{Items: views, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) itemFromInput(sellerID uuid.UUID, in CreateInput) (Item, error) {
	if !ValidCategory(in.Category) {
		return Item{}, badRequest("category", "unknown category", nil)
	}
	if in.OriginalPrice <= 0 {
		return Item{}, badRequest("originalPrice", "originalPrice must be positive", nil)
	}
	if in.Quantity <= 0 {
		return Item{}, badRequest("quantity", "quantity must be positive", nil)
	}
	if daysLeft := pricing.DaysUntilExpiry(s.now(), in.ExpiryDate); daysLeft < 0 {
		return Item{}, badRequest("expiryDate", "expiry date is already in the past", nil)
	}
	return Item{
		SellerID:      sellerID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Category:      in.Category,
		OriginalPrice: pricing.Money(in.OriginalPrice),
		ExpiryDate:    in.ExpiryDate,
		Quantity:      in.Quantity,
		ImageURL:      strings.TrimSpace(in.ImageURL),
		SKU:           strings.TrimSpace(in.SKU),
	}, nil
}

func (s *Service) requireVerified(ctx context.Context, sellerID uuid.UUID) error {
	if s.sellers == nil {
		return nil
	}
	ok, err := s.sellers.IsVerified(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("check seller verification: %w", err)
	}
	if !ok {
		return &common.AppError{
			Code:       "SELLER_NOT_VERIFIED",
			Message:    "seller must complete verification before listing items",
			HTTPStatus: http.StatusForbidden,
		}
	}
	return nil
}

func (s *Service) viewOf(item Item, now time.Time) (View, error) {
	quote, err := pricing.QuoteItem(now, item.OriginalPrice, item.ExpiryDate)
	if err != nil {
		if errors.Is(err, pricing.ErrExpiredItem) {
			return View{}, &common.AppError{
				Code:       "ITEM_EXPIRED",
				Message:    "item has passed its expiry date",
				HTTPStatus: http.StatusGone,
				Err:        err,
			}
		}
		return View{}, err
	}
	return viewFrom(item, quote), nil
}

// sellerViewOf never errors: the seller dashboard shows expired rows with a
// zero price and the expired tier instead of hiding them.
func (s *Service) sellerViewOf(item Item, now time.Time) View {
	quote, err := pricing.QuoteItem(now, item.OriginalPrice, item.ExpiryDate)
	if err != nil {
		quote = pricing.Quote{
			DaysLeft:   pricing.DaysUntilExpiry(now, item.ExpiryDate),
			Percent:    100,
			Tier:       pricing.TierExpired,
			FinalPrice: 0,
		}
	}
	return viewFrom(item, quote)
}

func viewFrom(item Item, quote pricing.Quote) View {
	return View{
		ID:              item.ID.String(),
		SellerID:        item.SellerID.String(),
		Name:            item.Name,
		Description:     item.Description,
		Category:        item.Category,
		OriginalPrice:   int64(item.OriginalPrice),
		FinalPrice:      int64(quote.FinalPrice),
		DiscountPercent: quote.Percent,
		Tier:            quote.Tier,
		DaysLeft:        quote.DaysLeft,
		ExpiryDate:      item.ExpiryDate,
		Quantity:        item.Quantity,
		ImageURL:        item.ImageURL,
		SKU:             item.SKU,
		Verified:        item.Verified,
	}
}

type cachedList struct {
	Items []View `json:"items"`
	Total int64  `json:"total"`
}

const listCacheKeyDefault = "catalog:items:list:front"

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" || params.Sort != "" {
		return "", false
	}
	return listCacheKeyDefault, true
}

func (s *Service) invalidateLists(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, listCacheKeyDefault)
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "discount", "expiry", "newest":
		return s
	default:
		return ""
	}
}

func notFound(err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: "item not found", HTTPStatus: http.StatusNotFound, Err: err}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
