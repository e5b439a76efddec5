package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
	"github.com/nearexpiry/backend-nearexpiry/internal/lock"
	"github.com/nearexpiry/backend-nearexpiry/internal/obs"
	"github.com/nearexpiry/backend-nearexpiry/internal/pricing"
)

// lockKeyReprice guards the sweep across worker replicas.
const lockKeyReprice = "lock:catalog:reprice"

// RepriceStore is the slice of the catalog store the sweep needs.
type RepriceStore interface {
	ListActive(ctx context.Context) ([]catalog.Item, error)
	UpdateDerived(ctx context.Context, id uuid.UUID, percent int, final pricing.Money, tier pricing.Tier) error
}

// Repricer refreshes the stored pricing columns so SQL sorting and filtering
// stay aligned with the discount an item would be quoted right now. Reads
// always recompute, so the sweep only has to keep the columns from drifting
// far enough to reorder listings.
type Repricer struct {
	Store   RepriceStore
	Locker  lock.Locker
	LockTTL time.Duration
	Log     zerolog.Logger
	now     func() time.Time
}

// NewRepricer constructs a Repricer.
func NewRepricer(store RepriceStore, locker lock.Locker, lockTTL time.Duration, log zerolog.Logger) (*Repricer, error) {
	if store == nil {
		return nil, errors.New("tasks: reprice store is required")
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Repricer{Store: store, Locker: locker, LockTTL: lockTTL, Log: log, now: time.Now}, nil
}

// WithNow overrides the clock. Test hook.
func (r *Repricer) WithNow(now func() time.Time) *Repricer {
	r.now = now
	return r
}

// Run executes one sweep. Overlapping runs on other replicas are skipped,
// not queued.
func (r *Repricer) Run(ctx context.Context) error {
	if r.Locker.R == nil {
		return r.sweep(ctx)
	}
	err := r.Locker.TryLock(ctx, lockKeyReprice, r.LockTTL, r.sweep)
	if errors.Is(err, lock.ErrNotAcquired) {
		r.Log.Debug().Msg("reprice sweep already running elsewhere, skipping")
		return nil
	}
	return err
}

func (r *Repricer) sweep(ctx context.Context) error {
	started := r.now()
	items, err := r.Store.ListActive(ctx)
	if err != nil {
		r.countRun("error")
		return err
	}

	var updated, expired, failed int
	for _, item := range items {
		quote, qerr := pricing.QuoteItem(started, item.OriginalPrice, item.ExpiryDate)
		if errors.Is(qerr, pricing.ErrExpiredItem) {
			// Flag dead stock so listings stop surfacing it between reads.
			if uerr := r.Store.UpdateDerived(ctx, item.ID, 100, 0, pricing.TierExpired); uerr != nil {
				failed++
				continue
			}
			expired++
			continue
		}
		if qerr != nil {
			failed++
			continue
		}
		if uerr := r.Store.UpdateDerived(ctx, item.ID, quote.Percent, quote.FinalPrice, quote.Tier); uerr != nil {
			failed++
			continue
		}
		updated++
	}

	result := "success"
	if failed > 0 {
		result = "partial"
	}
	r.countRun(result)
	r.Log.Info().
		Int("items", len(items)).
		Int("updated", updated).
		Int("expired", expired).
		Int("failed", failed).
		Dur("took", time.Since(started)).
		Msg("reprice sweep finished")
	return nil
}

func (r *Repricer) countRun(result string) {
	if obs.RepriceRunsTotal != nil {
		obs.RepriceRunsTotal.WithLabelValues(result).Inc()
	}
}
