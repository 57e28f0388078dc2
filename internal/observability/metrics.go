// Package observability exposes Prometheus metrics for step reconciliation.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	readingsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stride",
		Subsystem: "reconciler",
		Name:      "readings_total",
		Help:      "Number of step source readings observed, labeled by source kind.",
	}, []string{"kind"})

	persistedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stride",
		Subsystem: "reconciler",
		Name:      "persisted_writes_total",
		Help:      "Number of daily step counts written to the shared store.",
	})

	rolloverCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stride",
		Subsystem: "reconciler",
		Name:      "rollovers_total",
		Help:      "Number of day rollovers applied, labeled by the trigger that detected them.",
	}, []string{"trigger"})

	corruptedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stride",
		Subsystem: "store",
		Name:      "corrupted_keys_total",
		Help:      "Number of wrong-typed store entries removed and reset to defaults.",
	}, []string{"key"})

	stepsTodayGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stride",
		Subsystem: "reconciler",
		Name:      "steps_today",
		Help:      "Most recent reconciled step count for the current day.",
	})
)

func init() {
	prometheus.MustRegister(readingsCounter, persistedCounter, rolloverCounter, corruptedCounter, stepsTodayGauge)
}

// RecordReading counts one observed source reading.
func RecordReading(kind string) {
	readingsCounter.WithLabelValues(kind).Inc()
}

// RecordPersist counts a store write and updates the steps gauge.
func RecordPersist(steps int64) {
	persistedCounter.Inc()
	stepsTodayGauge.Set(float64(steps))
}

// RecordRollover counts a day reset and zeroes the steps gauge.
func RecordRollover(trigger string) {
	rolloverCounter.WithLabelValues(trigger).Inc()
	stepsTodayGauge.Set(0)
}

// RecordCorruption counts a removed wrong-typed key.
func RecordCorruption(key string) {
	corruptedCounter.WithLabelValues(key).Inc()
}
