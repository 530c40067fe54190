// Package metrics exposes engine-level prometheus instruments served on
// the /metrics endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics captures lead purchase and ledger health signals.
type Metrics struct {
	purchases       *prometheus.CounterVec
	creditDebits    *prometheus.CounterVec
	creditGrants    *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	schedulerSweeps prometheus.Counter
	resetContractor *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// New returns the singleton engine metrics registry.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			purchases: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "leadengine_purchases_total",
				Help: "Lead access purchase attempts by method and result.",
			}, []string{"method", "result"}),
			creditDebits: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "leadengine_credit_debits_total",
				Help: "Credit debit attempts by result.",
			}, []string{"result"}),
			creditGrants: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "leadengine_credit_grants_total",
				Help: "Credit additions by transaction type.",
			}, []string{"type"}),
			settlements: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "leadengine_settlements_total",
				Help: "Commission settlement attempts by result.",
			}, []string{"result"}),
			schedulerSweeps: promauto.NewCounter(prometheus.CounterOpts{
				Name: "leadengine_weekly_reset_sweeps_total",
				Help: "Weekly credit reset sweep runs.",
			}),
			resetContractor: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "leadengine_weekly_reset_contractors_total",
				Help: "Contractors touched by the weekly reset by outcome.",
			}, []string{"outcome"}),
		}
	})
	return metricsInst
}

func (m *Metrics) IncPurchase(method, result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(method, result).Inc()
}

func (m *Metrics) IncCreditDebit(result string) {
	if m == nil {
		return
	}
	m.creditDebits.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCreditGrant(txType string) {
	if m == nil {
		return
	}
	m.creditGrants.WithLabelValues(txType).Inc()
}

func (m *Metrics) IncSettlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSchedulerSweep() {
	if m == nil {
		return
	}
	m.schedulerSweeps.Inc()
}

func (m *Metrics) IncResetContractor(outcome string) {
	if m == nil {
		return
	}
	m.resetContractor.WithLabelValues(outcome).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
