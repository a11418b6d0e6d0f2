// Package telemetry collects pipeline metrics for local diagnostics.
// Metrics stay in-process; they are only exposed through the desktop debug
// endpoint and parlactl, never transmitted.
package telemetry

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry is the private registry all Parla metrics register against.
// A private registry keeps host-process metrics (the library is embedded
// in arbitrary applications) out of the exposition.
var Registry = prometheus.NewRegistry()

var (
	// EventsCaptured counts change events built by the mutation interceptor.
	EventsCaptured = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parla_events_captured_total",
		Help: "Change events captured at the storage engine boundary",
	}, []string{"operation"})

	// EventsDropped counts events discarded because the queue was full or closed.
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parla_events_dropped_total",
		Help: "Change events dropped at the producer side",
	})

	// CallbackPanics counts panics recovered at the dispatcher boundary.
	CallbackPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parla_callback_panics_total",
		Help: "Panics recovered from the host notification callback",
	})

	// DispatchDuration observes serialize-plus-callback latency.
	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parla_dispatch_duration_seconds",
		Help:    "Time spent serializing an event and invoking the callback",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// LedgerOps counts history ledger operations by kind and outcome.
	LedgerOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parla_ledger_ops_total",
		Help: "History ledger operations",
	}, []string{"op", "outcome"})

	// MonitorCycles counts reconciler cycles per partition.
	MonitorCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parla_monitor_cycles_total",
		Help: "Reconciler scan cycles",
	}, []string{"partition"})

	// HandlerFailures counts entity handler errors per partition.
	HandlerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parla_handler_failures_total",
		Help: "Entity handler failures during reconciliation",
	}, []string{"partition", "entity"})

	// DBQueryDuration observes repository query latency by operation.
	DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parla_db_query_duration_seconds",
		Help:    "Duration of repository queries",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"operation"})
)

func init() {
	Registry.MustRegister(
		EventsCaptured,
		EventsDropped,
		CallbackPanics,
		DispatchDuration,
		LedgerOps,
		MonitorCycles,
		HandlerFailures,
		DBQueryDuration,
	)
}

// ObserveQuery times a repository operation and records its duration.
func ObserveQuery(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return err
}

// Gather renders all Parla metrics in the Prometheus text format.
func Gather() (string, error) {
	families, err := Registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return buf.String(), nil
}
