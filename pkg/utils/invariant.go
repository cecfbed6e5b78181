// Invariants are conditions that must hold unless there is a bug in our own code, e.g. a shard count that was
// validated by the flag layer turning out to be non-positive. Raising an invariant logs an error and bumps a
// prometheus counter instead of crashing the server; the caller still handles the bad case, usually by falling
// back to a sane default.
//
// Don't raise invariants for conditions driven by the outside world (a client sending a bad command, a missing
// config file); those are plain errors.
//
// Builds with TestMode=true panic on invariants so tests surface them immediately.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ttlcache_invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant records a violated invariant of `invariantType` inside `module`.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetMetricValue returns the current count of invariants raised with the given `module` and `invariantType`.
func GetMetricValue(module, invariantType string) int {
	return int(CounterValue(invariantsMetric.WithLabelValues(module, invariantType)))
}

// CounterValue reads the current value of a prometheus counter; mostly useful in tests and diagnostics.
func CounterValue(counter prometheus.Counter) float64 {
	metric := &promclient.Metric{}
	if err := counter.Write(metric); err != nil {
		slog.Error("Failed to read counter value.", "error", err)
		return 0
	}
	return metric.GetCounter().GetValue()
}

// HistogramCount reads the number of observations recorded by a prometheus histogram.
func HistogramCount(observer prometheus.Observer) uint64 {
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		return 0
	}
	written := &promclient.Metric{}
	if err := metric.Write(written); err != nil {
		slog.Error("Failed to read histogram value.", "error", err)
		return 0
	}
	return written.GetHistogram().GetSampleCount()
}
