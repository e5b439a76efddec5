package seller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/seller"
)

type memStore struct {
	mu       sync.Mutex
	bySeller map[uuid.UUID]seller.Verification
}

func newMemStore() *memStore {
	return &memStore{bySeller: make(map[uuid.UUID]seller.Verification)}
}

func (m *memStore) Upsert(_ context.Context, v seller.Verification) (seller.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.bySeller[v.SellerID]; ok {
		v.ID = existing.ID
	} else {
		v.ID = uuid.New()
	}
	v.Reason = ""
	v.ReviewedBy = nil
	v.ReviewedAt = nil
	m.bySeller[v.SellerID] = v
	return v, nil
}

func (m *memStore) GetBySeller(_ context.Context, sellerID uuid.UUID) (seller.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.bySeller[sellerID]
	if !ok {
		return seller.Verification{}, seller.ErrNotFound
	}
	return v, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (seller.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.bySeller {
		if v.ID == id {
			return v, nil
		}
	}
	return seller.Verification{}, seller.ErrNotFound
}

func (m *memStore) ListByStatus(_ context.Context, status string, _, _ int) ([]seller.Verification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []seller.Verification
	for _, v := range m.bySeller {
		if v.Status == status {
			list = append(list, v)
		}
	}
	return list, int64(len(list)), nil
}

func (m *memStore) SetDecision(_ context.Context, id uuid.UUID, status, reason string, reviewedBy uuid.UUID, reviewedAt time.Time) (seller.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sellerID, v := range m.bySeller {
		if v.ID == id {
			v.Status = status
			v.Reason = reason
			v.ReviewedBy = &reviewedBy
			v.ReviewedAt = &reviewedAt
			m.bySeller[sellerID] = v
			return v, nil
		}
	}
	return seller.Verification{}, seller.ErrNotFound
}

func newTestService(t *testing.T, store seller.Store) *seller.Service {
	t.Helper()
	svc, err := seller.NewService(seller.ServiceConfig{
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestVerificationLifecycle(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	sellerID := uuid.New()
	admin := uuid.New()

	ok, err := svc.IsVerified(ctx, sellerID)
	require.NoError(t, err)
	require.False(t, ok)

	submitted, err := svc.Submit(ctx, sellerID, seller.SubmitInput{
		BusinessName:  "Fresh Saver Mart",
		LicenseNumber: "FSSAI-1234",
	})
	require.NoError(t, err)
	require.Equal(t, seller.StatusPending, submitted.Status)

	pending, total, err := svc.ListPending(ctx, 20, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	approved, err := svc.Decide(ctx, pending[0].ID, admin, true, "")
	require.NoError(t, err)
	require.Equal(t, seller.StatusApproved, approved.Status)

	ok, err = svc.IsVerified(ctx, sellerID)
	require.NoError(t, err)
	require.True(t, ok)

	// Approved sellers cannot file again.
	_, err = svc.Submit(ctx, sellerID, seller.SubmitInput{BusinessName: "X", LicenseNumber: "Y-123"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ALREADY_VERIFIED", appErr.Code)
}

func TestRejectRequiresReasonAndAllowsResubmit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	sellerID := uuid.New()
	admin := uuid.New()

	submitted, err := svc.Submit(ctx, sellerID, seller.SubmitInput{
		BusinessName:  "Corner Store",
		LicenseNumber: "LIC-9",
	})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, submitted.ID, admin, false, "  ")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	rejected, err := svc.Decide(ctx, submitted.ID, admin, false, "license number does not match registry")
	require.NoError(t, err)
	require.Equal(t, seller.StatusRejected, rejected.Status)
	require.NotEmpty(t, rejected.Reason)

	// A second ruling on the same application is refused.
	_, err = svc.Decide(ctx, submitted.ID, admin, true, "")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)

	// Rejection reopens the door for a fresh application.
	resubmitted, err := svc.Submit(ctx, sellerID, seller.SubmitInput{
		BusinessName:  "Corner Store",
		LicenseNumber: "LIC-10",
	})
	require.NoError(t, err)
	require.Equal(t, seller.StatusPending, resubmitted.Status)
	require.Empty(t, resubmitted.Reason)
}
