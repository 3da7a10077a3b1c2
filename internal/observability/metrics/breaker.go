package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

func newBreakerStateGauge(constLabels prometheus.Labels) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "resilience",
		Name:        "breaker_state",
		Help:        "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		ConstLabels: constLabels,
	}, []string{"operation"})
}

func breakerObserver(gauge *prometheus.GaugeVec) func(operation string, from, to gobreaker.State) {
	return func(operation string, _, to gobreaker.State) {
		gauge.WithLabelValues(operation).Set(breakerStateValue(to))
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
