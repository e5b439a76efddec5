package shipment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/shipment"
)

type memStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]shipment.Shipment
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[uuid.UUID]shipment.Shipment)}
}

func (m *memStore) Insert(_ context.Context, sh shipment.Shipment) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh.ID = uuid.New()
	sh.CreatedAt = time.Now()
	sh.UpdatedAt = sh.CreatedAt
	m.byID[sh.ID] = sh
	return sh, nil
}

func (m *memStore) GetByOrder(_ context.Context, orderID uuid.UUID) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range m.byID {
		if sh.OrderID == orderID {
			return sh, nil
		}
	}
	return shipment.Shipment{}, shipment.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.byID[id]
	if !ok {
		return shipment.Shipment{}, shipment.ErrNotFound
	}
	return sh, nil
}

func (m *memStore) AssignPartner(_ context.Context, id, partnerID uuid.UUID) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.byID[id]
	if !ok {
		return shipment.Shipment{}, shipment.ErrNotFound
	}
	sh.PartnerID = &partnerID
	m.byID[id] = sh
	return sh, nil
}

func (m *memStore) Advance(_ context.Context, id uuid.UUID, target, note string) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.byID[id]
	if !ok {
		return shipment.Shipment{}, shipment.ErrNotFound
	}
	if shipment.Rank(sh.Status) >= shipment.Rank(target) {
		return shipment.Shipment{}, shipment.ErrInvalidTransition
	}
	sh.Status = target
	sh.Note = note
	m.byID[id] = sh
	return sh, nil
}

func (m *memStore) ListForPartner(_ context.Context, partnerID uuid.UUID, _, _ int) ([]shipment.Shipment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []shipment.Shipment
	for _, sh := range m.byID {
		if sh.PartnerID != nil && *sh.PartnerID == partnerID {
			list = append(list, sh)
		}
	}
	return list, int64(len(list)), nil
}

func newTestService(t *testing.T, store shipment.Store) *shipment.Service {
	t.Helper()
	svc, err := shipment.NewService(shipment.ServiceConfig{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return svc
}

func TestShipmentForwardChain(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	orderID := uuid.New()
	partnerID := uuid.New()

	sh, err := svc.CreateForOrder(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, shipment.StatusPending, sh.Status)

	// Second shipment for the same order is refused.
	_, err = svc.CreateForOrder(ctx, orderID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ALREADY_EXISTS", appErr.Code)

	sh, err = svc.AssignPartner(ctx, sh.ID, partnerID)
	require.NoError(t, err)
	require.NotNil(t, sh.PartnerID)

	for _, status := range []string{shipment.StatusPacked, shipment.StatusInTransit, shipment.StatusDelivered} {
		sh, err = svc.Advance(ctx, sh.ID, partnerID, false, status, "")
		require.NoError(t, err)
		require.Equal(t, status, sh.Status)
	}

	// No going back.
	_, err = svc.Advance(ctx, sh.ID, partnerID, false, shipment.StatusPacked, "")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestAdvanceRejectsForeignPartner(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	sh, err := svc.CreateForOrder(ctx, uuid.New())
	require.NoError(t, err)
	sh, err = svc.AssignPartner(ctx, sh.ID, uuid.New())
	require.NoError(t, err)

	_, err = svc.Advance(ctx, sh.ID, uuid.New(), false, shipment.StatusPacked, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	// Admins bypass the ownership check.
	advanced, err := svc.Advance(ctx, sh.ID, uuid.New(), true, shipment.StatusPacked, "packed at depot")
	require.NoError(t, err)
	require.Equal(t, shipment.StatusPacked, advanced.Status)
}

func TestAdvanceRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(t, newMemStore())
	_, err := svc.Advance(context.Background(), uuid.New(), uuid.New(), true, "teleported", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}
