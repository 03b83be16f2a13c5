package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pairsScoredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dedup_service",
		Subsystem: "detection",
		Name:      "pairs_scored_total",
		Help:      "Number of candidate activity pairs scored, labeled by decision tier.",
	}, []string{"tier"})

	confidenceHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dedup_service",
		Subsystem: "detection",
		Name:      "confidence_score",
		Help:      "Distribution of confidence scores across scored pairs.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	requestsCreatedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dedup_service",
		Subsystem: "requests",
		Name:      "created_total",
		Help:      "Number of merge requests created, labeled by initial status.",
	}, []string{"status"})

	resolutionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dedup_service",
		Subsystem: "requests",
		Name:      "resolved_total",
		Help:      "Number of merge requests resolved, labeled by final status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(pairsScoredCounter, confidenceHistogram, requestsCreatedCounter, resolutionsCounter)
}

// RecordPairScored tracks a scored candidate pair and its decision tier.
func RecordPairScored(tier string, score int) {
	pairsScoredCounter.WithLabelValues(tier).Inc()
	confidenceHistogram.Observe(float64(score))
}

// RecordRequestCreated tracks a persisted merge request by initial status.
func RecordRequestCreated(status string) {
	requestsCreatedCounter.WithLabelValues(status).Inc()
}

// RecordResolution tracks a request leaving pending.
func RecordResolution(status string) {
	resolutionsCounter.WithLabelValues(status).Inc()
}
