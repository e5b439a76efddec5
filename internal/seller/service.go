package seller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/events"
)

// Verification statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ErrNotFound is returned when no verification matches the request.
var ErrNotFound = errors.New("seller: verification not found")

// Verification is a seller's identity-review record.
type Verification struct {
	ID            uuid.UUID  `json:"id"`
	SellerID      uuid.UUID  `json:"sellerId"`
	BusinessName  string     `json:"businessName"`
	LicenseNumber string     `json:"licenseNumber"`
	DocumentURL   string     `json:"documentUrl,omitempty"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	ReviewedBy    *uuid.UUID `json:"reviewedBy,omitempty"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
}

// Store abstracts verification persistence.
type Store interface {
	Upsert(ctx context.Context, v Verification) (Verification, error)
	GetBySeller(ctx context.Context, sellerID uuid.UUID) (Verification, error)
	GetByID(ctx context.Context, id uuid.UUID) (Verification, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]Verification, int64, error)
	SetDecision(ctx context.Context, id uuid.UUID, status, reason string, reviewedBy uuid.UUID, reviewedAt time.Time) (Verification, error)
}

// Service runs the seller verification workflow.
type Service struct {
	store  Store
	events *events.Bus
	log    zerolog.Logger
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Events *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("seller: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, events: cfg.Events, log: cfg.Logger, now: now}, nil
}

// SubmitInput is the verification application body.
type SubmitInput struct {
	BusinessName  string `json:"businessName" validate:"required,min=2,max=200"`
	LicenseNumber string `json:"licenseNumber" validate:"required,min=3,max=64"`
	DocumentURL   string `json:"documentUrl" validate:"omitempty,url"`
}

// Submit files or refiles a verification application. Resubmitting after a
// rejection restarts the review; an approved seller cannot downgrade itself.
func (s *Service) Submit(ctx context.Context, sellerID uuid.UUID, in SubmitInput) (Verification, error) {
	existing, err := s.store.GetBySeller(ctx, sellerID)
	if err == nil && existing.Status == StatusApproved {
		return Verification{}, &common.AppError{
			Code:       "ALREADY_VERIFIED",
			Message:    "seller is already verified",
			HTTPStatus: http.StatusConflict,
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Verification{}, fmt.Errorf("load verification: %w", err)
	}
	v := Verification{
		SellerID:      sellerID,
		BusinessName:  strings.TrimSpace(in.BusinessName),
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		DocumentURL:   strings.TrimSpace(in.DocumentURL),
		Status:        StatusPending,
		SubmittedAt:   s.now(),
	}
	stored, err := s.store.Upsert(ctx, v)
	if err != nil {
		return Verification{}, fmt.Errorf("save verification: %w", err)
	}
	s.log.Info().Str("seller_id", sellerID.String()).Msg("verification submitted")
	return stored, nil
}

// StatusFor returns the seller's current verification record.
func (s *Service) StatusFor(ctx context.Context, sellerID uuid.UUID) (Verification, error) {
	v, err := s.store.GetBySeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verification{}, &common.AppError{
				Code:       "NOT_FOUND",
				Message:    "no verification on file",
				HTTPStatus: http.StatusNotFound,
				Err:        err,
			}
		}
		return Verification{}, fmt.Errorf("load verification: %w", err)
	}
	return v, nil
}

// ListPending returns applications waiting for review.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]Verification, int64, error) {
	list, total, err := s.store.ListByStatus(ctx, StatusPending, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending verifications: %w", err)
	}
	return list, total, nil
}

// Decide approves or rejects an application.
func (s *Service) Decide(ctx context.Context, id, reviewedBy uuid.UUID, approve bool, reason string) (Verification, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verification{}, &common.AppError{Code: "NOT_FOUND", Message: "verification not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Verification{}, fmt.Errorf("load verification: %w", err)
	}
	if current.Status != StatusPending {
		return Verification{}, &common.AppError{
			Code:       "INVALID_STATE",
			Message:    "verification has already been reviewed",
			HTTPStatus: http.StatusConflict,
		}
	}
	status := StatusRejected
	topic := events.TopicSellerRejected
	if approve {
		status = StatusApproved
		topic = events.TopicSellerVerified
		reason = ""
	} else if strings.TrimSpace(reason) == "" {
		return Verification{}, &common.AppError{
			Code:       "BAD_REQUEST",
			Message:    "a reason is required to reject",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	decided, err := s.store.SetDecision(ctx, id, status, strings.TrimSpace(reason), reviewedBy, s.now())
	if err != nil {
		return Verification{}, fmt.Errorf("record decision: %w", err)
	}
	s.log.Info().
		Str("seller_id", decided.SellerID.String()).
		Str("status", status).
		Msg("verification decided")
	if s.events != nil {
		_, _ = s.events.Emit(ctx, topic, decided.SellerID, map[string]any{
			"sellerId": decided.SellerID.String(),
			"status":   status,
		})
	}
	return decided, nil
}

// IsVerified reports whether the seller has an approved verification. It
// satisfies the catalog's seller gate.
func (s *Service) IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	v, err := s.store.GetBySeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return v.Status == StatusApproved, nil
}
