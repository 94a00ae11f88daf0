package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AssessmentsTotal *prometheus.CounterVec
	RiskScore        prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		AssessmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_georisk_assessments_total",
			Help: "Total number of risk assessments by policy and outcome",
		}, []string{"policy", "outcome"}),
		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lendgate_georisk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100, 150},
		}),
	}
}

func (m *Metrics) RecordAssessment(policy string, allowed bool, score int) {
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	m.AssessmentsTotal.WithLabelValues(policy, outcome).Inc()
	m.RiskScore.Observe(float64(score))
}
