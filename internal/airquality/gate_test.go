package airquality

import (
	"errors"
	"testing"
	"time"
)

var errEmpty = errors.New("empty")

// stubStore is a minimal Store for gate and service tests.
type stubStore struct {
	reading *Reading
	saves   int
}

func (s *stubStore) SaveReading(r Reading) {
	s.saves++
	s.reading = &r
}

func (s *stubStore) Latest() (Reading, error) {
	if s.reading == nil {
		return Reading{}, errEmpty
	}
	return *s.reading, nil
}

type panicStore struct{}

func (panicStore) SaveReading(Reading)      {}
func (panicStore) Latest() (Reading, error) { panic("corrupted cache") }

func TestGateNoData(t *testing.T) {
	g := NewGate(&stubStore{}, 10*time.Minute, nil, false)

	obs := g.Current(testNow)
	if obs.Available() {
		t.Fatalf("expected no data, got %+v", obs)
	}
	if obs.PrimaryFactor != nil || obs.Category != nil {
		t.Fatalf("expected all fields absent, got %+v", obs)
	}
}

func TestGateNilStore(t *testing.T) {
	g := NewGate(nil, 10*time.Minute, nil, false)
	if g.Current(testNow).Available() {
		t.Fatalf("expected no data from a gate without store")
	}
}

func TestGateFreshnessWindow(t *testing.T) {
	interval := 10 * time.Minute
	captured := testNow
	st := &stubStore{}
	st.SaveReading(Reading{Value: 42, Category: CategoryGood, PrimaryFactor: "PM2.5", CapturedAt: captured})

	g := NewGate(st, interval, nil, false)
	if g.MaxAge() != 2*interval {
		t.Fatalf("expected max age %s, got %s", 2*interval, g.MaxAge())
	}

	tests := []struct {
		at    time.Time
		fresh bool
	}{
		{captured, true},
		{captured.Add(interval), true},
		{captured.Add(2 * interval), true},
		{captured.Add(2*interval + time.Nanosecond), false},
		{captured.Add(3 * interval), false},
	}

	for _, tt := range tests {
		obs := g.Current(tt.at)
		if obs.Available() != tt.fresh {
			t.Errorf("query at +%s: expected fresh=%v, got %v", tt.at.Sub(captured), tt.fresh, obs.Available())
			continue
		}
		if !tt.fresh {
			continue
		}
		if *obs.AQIValue != 42 || *obs.PrimaryFactor != "PM2.5" || *obs.Category != string(CategoryGood) {
			t.Errorf("unexpected observation fields: %d %s %s", *obs.AQIValue, *obs.PrimaryFactor, *obs.Category)
		}
	}
}

func TestGateRecoversFromFault(t *testing.T) {
	g := NewGate(panicStore{}, time.Minute, nil, false)

	obs := g.Current(testNow)
	if obs.Available() {
		t.Fatalf("expected no data after fault, got %+v", obs)
	}

	record := map[string]any{"outTemp": 21.5}
	g.Inject(record, testNow)
	for _, key := range []string{FieldAQIValue, FieldPrimaryFactor, FieldAQICategory} {
		v, ok := record[key]
		if !ok || v != nil {
			t.Errorf("expected %s to be set to nil, got %v (present=%v)", key, v, ok)
		}
	}
}

func TestGateInject(t *testing.T) {
	st := &stubStore{}
	st.SaveReading(Reading{Value: 120, Category: CategoryUnhealthySensitive, PrimaryFactor: "Ozone", CapturedAt: testNow})
	g := NewGate(st, 5*time.Minute, nil, true)

	record := map[string]any{"outTemp": 21.5}
	g.Inject(record, testNow.Add(time.Minute))

	if record[FieldAQIValue] != 120 {
		t.Errorf("expected aqi_value 120, got %v", record[FieldAQIValue])
	}
	if record[FieldPrimaryFactor] != "Ozone" {
		t.Errorf("expected primary_factor Ozone, got %v", record[FieldPrimaryFactor])
	}
	if record[FieldAQICategory] != string(CategoryUnhealthySensitive) {
		t.Errorf("expected aqi_category %q, got %v", CategoryUnhealthySensitive, record[FieldAQICategory])
	}
	if record["outTemp"] != 21.5 {
		t.Errorf("existing record fields must be preserved")
	}

	// Past the window the same record gets explicit absent markers.
	g.Inject(record, testNow.Add(11*time.Minute))
	if v, ok := record[FieldAQIValue]; !ok || v != nil {
		t.Errorf("expected stale aqi_value to be nil, got %v", v)
	}

	// A nil record is ignored.
	g.Inject(nil, testNow)
}
