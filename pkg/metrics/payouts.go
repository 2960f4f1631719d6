package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics counts dispatch outcomes per rail.
type PayoutMetrics struct {
	dispatches *prometheus.CounterVec
	requeries  *prometheus.CounterVec
}

// NewPayoutMetrics registers payout counters on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_dispatch_total",
		Help: "Payout dispatch attempts by rail and outcome.",
	}, []string{"rail", "outcome"})
	requeries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_requery_total",
		Help: "Rail status requeries for in-flight payouts by rail and result.",
	}, []string{"rail", "result"})
	reg.MustRegister(dispatches, requeries)
	return &PayoutMetrics{dispatches: dispatches, requeries: requeries}
}

// IncDispatch records one dispatch attempt outcome.
func (p *PayoutMetrics) IncDispatch(rail, outcome string) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.WithLabelValues(normalizeLabel(rail), normalizeLabel(outcome)).Inc()
}

// IncRequery records one status requery result.
func (p *PayoutMetrics) IncRequery(rail, result string) {
	if p == nil || p.requeries == nil {
		return
	}
	p.requeries.WithLabelValues(normalizeLabel(rail), normalizeLabel(result)).Inc()
}
