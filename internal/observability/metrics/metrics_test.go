package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"carebook/backend/internal/store"
	"carebook/backend/internal/validation"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: OutcomeOK},
		{name: "validation", err: &validation.Error{}, want: OutcomeInvalid},
		{name: "patient not found", err: store.ErrPatientNotFound, want: OutcomeNotFound},
		{name: "wrapped appointment not found", err: fmt.Errorf("load: %w", store.ErrAppointmentNotFound), want: OutcomeNotFound},
		{name: "duplicate slot", err: store.ErrDuplicateSlot, want: OutcomeConflict},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutcomeOf(tt.err); got != tt.want {
				t.Fatalf("OutcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSchedulingMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.Observe("appointment", "create", nil)
	m.Observe("appointment", "create", store.ErrDuplicateSlot)
	m.Observe("appointment", "create", store.ErrDuplicateSlot)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("appointment", "create", OutcomeConflict)); got != 2 {
		t.Fatalf("conflict count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("appointment", "create", OutcomeOK)); got != 1 {
		t.Fatalf("ok count = %v, want 1", got)
	}
}

func TestHTTPMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/appointments", 200, 0.01)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/appointments", "200")); got != 1 {
		t.Fatalf("request count = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var s *SchedulingMetrics
	s.Observe("patient", "create", nil)

	var h *HTTPMetrics
	h.Observe("GET", "/", 200, 0.1)
}
