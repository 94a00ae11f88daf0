package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal      *prometheus.CounterVec
	StoreErrorsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_ratelimit_checks_total",
			Help: "Total number of rate limit checks by action and outcome",
		}, []string{"action", "outcome"}),
		StoreErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_ratelimit_store_errors_total",
			Help: "Total number of counter store failures by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) RecordCheck(action string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.ChecksTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) RecordStoreError(action string) {
	m.StoreErrorsTotal.WithLabelValues(action).Inc()
}
