// Package telemetry tests for metric collection.
package telemetry

import (
	"errors"
	"strings"
	"testing"
)

// TestObserveQuery verifies the wrapper passes errors through and records.
func TestObserveQuery(t *testing.T) {
	wantErr := errors.New("boom")

	err := ObserveQuery("test_op", func() error { return wantErr })
	if err != wantErr {
		t.Errorf("ObserveQuery() error = %v, want %v", err, wantErr)
	}

	if err := ObserveQuery("test_op", func() error { return nil }); err != nil {
		t.Errorf("ObserveQuery() error = %v, want nil", err)
	}
}

// TestGather verifies text exposition contains registered metrics.
func TestGather(t *testing.T) {
	EventsCaptured.WithLabelValues("INSERT").Inc()
	EventsDropped.Inc()

	out, err := Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if !strings.Contains(out, "parla_events_captured_total") {
		t.Error("exposition should contain parla_events_captured_total")
	}
	if !strings.Contains(out, "parla_events_dropped_total") {
		t.Error("exposition should contain parla_events_dropped_total")
	}
}
