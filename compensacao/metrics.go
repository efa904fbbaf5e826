package compensacao

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemediationTotal counts remediation commands by action and outcome.
	// Outcome is the error kind when there is one, else the notification level.
	RemediationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compensacao_remediation_total",
		Help: "Total number of remediation commands by action and outcome",
	}, []string{"action", "outcome"})

	// FetchDuration measures the anomaly query round trip including mapping.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "compensacao_fetch_duration_seconds",
		Help:    "Duration of anomaly fetches in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// Records is the size of the last fetched set per origin.
	Records = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "compensacao_records",
		Help: "Number of records in the last successful fetch by origin",
	}, []string{"origin"})
)

func observeRemediation(action string, n Notification) {
	outcome := string(n.Level)
	if n.Kind != "" {
		outcome = string(n.Kind)
	}
	RemediationTotal.WithLabelValues(action, outcome).Inc()
}
