package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/scheduler"
	"github.com/i474232898/aqi-collector/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeScheduler struct{ status scheduler.Status }

func (f fakeScheduler) Status() scheduler.Status { return f.status }

type fakeCircuit string

func (f fakeCircuit) CircuitState() string { return string(f) }

func newTestApp(t *testing.T, reading *airquality.Reading, deps Deps) *fiber.App {
	t.Helper()

	memStore := store.NewMemoryStore()
	if reading != nil {
		memStore.SaveReading(*reading)
	}
	deps.Service = airquality.NewService(memStore, nil, airquality.ServiceOptions{Interval: 10 * time.Minute})

	app := fiber.New()
	RegisterRoutes(app, deps)
	return app
}

func getJSON(t *testing.T, app *fiber.App, path string, out any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// TestCurrentWithoutData verifies that the current endpoint reports explicit
// nulls rather than an error when nothing fresh is cached.
func TestCurrentWithoutData(t *testing.T) {
	app := newTestApp(t, nil, Deps{Now: func() time.Time { return testNow }})

	var body map[string]any
	getJSON(t, app, "/api/v1/air/current", &body)

	for _, key := range []string{"aqi_value", "primary_factor", "aqi_category"} {
		v, ok := body[key]
		if !ok || v != nil {
			t.Errorf("expected %s to be null, got %v (present=%v)", key, v, ok)
		}
	}
}

func TestCurrentFreshAndStale(t *testing.T) {
	reading := &airquality.Reading{Value: 87, Category: airquality.CategoryModerate, PrimaryFactor: "PM10", CapturedAt: testNow}
	now := testNow.Add(5 * time.Minute)
	app := newTestApp(t, reading, Deps{Now: func() time.Time { return now }})

	var fresh airquality.Observation
	getJSON(t, app, "/api/v1/air/current", &fresh)
	if !fresh.Available() || *fresh.AQIValue != 87 || *fresh.PrimaryFactor != "PM10" || *fresh.Category != "Moderate" {
		t.Fatalf("unexpected fresh observation %+v", fresh)
	}

	now = testNow.Add(21 * time.Minute)
	var stale airquality.Observation
	getJSON(t, app, "/api/v1/air/current", &stale)
	if stale.Available() {
		t.Fatalf("expected stale reading to be withheld, got %+v", stale)
	}
}

func TestStatusDisabled(t *testing.T) {
	app := newTestApp(t, nil, Deps{Now: func() time.Time { return testNow }})

	var body statusResponse
	getJSON(t, app, "/api/v1/air/status", &body)

	if body.Enabled {
		t.Errorf("expected enabled=false without a scheduler")
	}
	if body.Scheduler != nil || body.Reading != nil || body.Fresh {
		t.Errorf("unexpected status body %+v", body)
	}
	if body.MaxAgeSeconds != 1200 {
		t.Errorf("expected max age 1200s, got %v", body.MaxAgeSeconds)
	}
}

func TestStatusEnabled(t *testing.T) {
	reading := &airquality.Reading{Value: 12, Category: airquality.CategoryGood, PrimaryFactor: "PM2.5", CapturedAt: testNow}
	st := scheduler.Status{State: "waiting_for_backoff", LastErrorKind: "transport"}
	st.ConsecutiveFailures = 3

	app := newTestApp(t, reading, Deps{
		Scheduler: fakeScheduler{status: st},
		Circuit:   fakeCircuit("closed"),
		Now:       func() time.Time { return testNow.Add(time.Minute) },
	})

	var body statusResponse
	getJSON(t, app, "/api/v1/air/status", &body)

	if !body.Enabled || body.Circuit != "closed" {
		t.Errorf("unexpected enabled/circuit: %v/%q", body.Enabled, body.Circuit)
	}
	if body.Scheduler == nil || body.Scheduler.State != "waiting_for_backoff" || body.Scheduler.ConsecutiveFailures != 3 {
		t.Errorf("unexpected scheduler status %+v", body.Scheduler)
	}
	if body.Reading == nil || body.Reading.Value != 12 {
		t.Errorf("unexpected reading %+v", body.Reading)
	}
	if !body.Fresh {
		t.Errorf("expected reading to be fresh")
	}
}
