package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersTotal counts checkout outcomes.
	OrdersTotal *prometheus.CounterVec
	// OversellRejectedTotal counts checkouts rejected by the stock guard.
	OversellRejectedTotal prometheus.Counter
	// GreenPointsAwarded accumulates green points granted to buyers.
	GreenPointsAwarded prometheus.Counter
	// WasteSavedGrams accumulates estimated diverted mass across orders.
	WasteSavedGrams prometheus.Counter
	// RepriceRunsTotal counts reprice sweeps by outcome.
	RepriceRunsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		OversellRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversell_rejected_total",
			Help:      "Checkouts rejected because stock was insufficient.",
		})
		GreenPointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "green_points_awarded_total",
			Help:      "Green points credited to buyers.",
		})
		WasteSavedGrams = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waste_saved_grams_total",
			Help:      "Estimated grams of product diverted from disposal.",
		})
		RepriceRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reprice_runs_total",
			Help:      "Periodic reprice sweeps by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, OrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersTotal = v
			}
		})
		mustRegisterCollector(reg, OversellRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OversellRejectedTotal = v
			}
		})
		mustRegisterCollector(reg, GreenPointsAwarded, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				GreenPointsAwarded = v
			}
		})
		mustRegisterCollector(reg, WasteSavedGrams, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				WasteSavedGrams = v
			}
		})
		mustRegisterCollector(reg, RepriceRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RepriceRunsTotal = v
			}
		})
	})
}
