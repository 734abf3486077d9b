// Package metrics defines Prometheus counters/histograms for matches,
// black swans and operation dispatch time; no engine package calls them.
// Grounded on the call
// convention of metrics.NewTimeCounter("-", "settlement", "SettleOrder")
// observed at the teacher's settlement engine's call site.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	matchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revpop",
		Subsystem: "matching",
		Name:      "matches_total",
		Help:      "Total number of order matches performed, by kind.",
	}, []string{"kind"})

	blackSwansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revpop",
		Subsystem: "settlement",
		Name:      "black_swans_total",
		Help:      "Total number of global settlements triggered, by asset.",
	}, []string{"asset"})

	dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "revpop",
		Subsystem: "evaluator",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent evaluating one inbound operation, by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(matchesTotal, blackSwansTotal, dispatchDuration)
}

// RecordMatch increments the match counter for the given kind ("limit",
// "call", "settle").
func RecordMatch(kind string) { matchesTotal.WithLabelValues(kind).Inc() }

// RecordBlackSwan increments the black-swan counter for asset.
func RecordBlackSwan(asset string) { blackSwansTotal.WithLabelValues(asset).Inc() }

// NewTimeCounter returns a prometheus.Timer that records its elapsed
// duration into dispatch_duration_seconds under label operation when
// stopped, matching the teacher's start-a-timer-at-call-site idiom.
func NewTimeCounter(operation string) *prometheus.Timer {
	return prometheus.NewTimer(dispatchDuration.WithLabelValues(operation))
}
