package scheduler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/metrics"
	"github.com/i474232898/aqi-collector/internal/store"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestReporterTracksFreshness(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewReporter(st, 20*time.Minute, time.Minute, nil)

	now := t0
	r.now = func() time.Time { return now }

	r.report()
	if got := gaugeValue(t, metrics.ReadingAgeSeconds); got != -1 {
		t.Errorf("expected age -1 without a reading, got %v", got)
	}
	if got := gaugeValue(t, metrics.ReadingFresh); got != 0 {
		t.Errorf("expected fresh=0 without a reading, got %v", got)
	}

	st.SaveReading(airquality.Reading{Value: 42, CapturedAt: t0})
	now = t0.Add(5 * time.Minute)
	r.report()
	if got := gaugeValue(t, metrics.ReadingAgeSeconds); got != 300 {
		t.Errorf("expected age 300s, got %v", got)
	}
	if got := gaugeValue(t, metrics.ReadingFresh); got != 1 {
		t.Errorf("expected fresh=1, got %v", got)
	}
	if !r.wasFresh {
		t.Errorf("expected reporter to remember the fresh reading")
	}

	now = t0.Add(21 * time.Minute)
	r.report()
	if got := gaugeValue(t, metrics.ReadingFresh); got != 0 {
		t.Errorf("expected fresh=0 once past max age, got %v", got)
	}
	if r.wasFresh {
		t.Errorf("expected reporter to notice the stale reading")
	}
}

func TestReporterStartStop(t *testing.T) {
	r := NewReporter(store.NewMemoryStore(), time.Minute, 0, nil)
	if r.every != DefaultReportInterval {
		t.Fatalf("expected default report interval, got %s", r.every)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Stop()
}
