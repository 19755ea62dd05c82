package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "chainminer"

// Bucket outcome label values
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus instruments of a Miner.
type Metrics struct {
	// EventsTotal counts events fed into Run.
	EventsTotal prometheus.Counter

	// BucketsMined counts mined buckets. Labels: status (success, error)
	BucketsMined *prometheus.CounterVec

	// BucketDuration measures how long one bucket takes to mine.
	BucketDuration prometheus.Histogram

	// TransitionsTotal counts extracted transitions. Labels: transition ("UtC->CtU")
	TransitionsTotal *prometheus.CounterVec
}

// NewMetrics creates the miner metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total number of events read by the miner",
		}),
		BucketsMined: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "buckets_mined_total",
			Help:      "Total number of mined buckets by status",
		}, []string{"status"}),
		BucketDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "bucket_mining_seconds",
			Help:      "Time spent mining one bucket",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Total number of extracted transitions by label",
		}, []string{"transition"}),
	}
}
