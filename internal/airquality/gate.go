package airquality

import (
	"fmt"
	"log/slog"
	"time"
)

// Record keys written by Gate.Inject.
const (
	FieldAQIValue      = "aqi_value"
	FieldPrimaryFactor = "primary_factor"
	FieldAQICategory   = "aqi_category"
)

// Observation is what the host pipeline sees for one record.
// Either all three fields are set or all three are nil.
type Observation struct {
	AQIValue      *int    `json:"aqi_value"`
	PrimaryFactor *string `json:"primary_factor"`
	Category      *string `json:"aqi_category"`
}

// Available reports whether the observation carries a fresh reading.
func (o Observation) Available() bool {
	return o.AQIValue != nil
}

func observationOf(r Reading) Observation {
	value := r.Value
	factor := r.PrimaryFactor
	category := string(r.Category)
	return Observation{AQIValue: &value, PrimaryFactor: &factor, Category: &category}
}

// Gate decides which reading, if any, the host pipeline may observe.
// A reading older than MaxAge is never surfaced.
type Gate struct {
	store      Store
	maxAge     time.Duration
	logger     *slog.Logger
	logSuccess bool
}

// NewGate creates a Gate whose freshness window is twice the polling interval.
// A nil store yields a gate that always reports no data.
func NewGate(store Store, interval time.Duration, logger *slog.Logger, logSuccess bool) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:      store,
		maxAge:     2 * interval,
		logger:     logger,
		logSuccess: logSuccess,
	}
}

// MaxAge returns the freshness window.
func (g *Gate) MaxAge() time.Duration {
	return g.maxAge
}

// Current returns the observation for a query made at now.
// It never panics; any internal fault is reported as no data.
func (g *Gate) Current(now time.Time) (obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gate: recovered from fault while reading cache", "err", fmt.Sprint(r))
			obs = Observation{}
		}
	}()

	if g.store == nil {
		return Observation{}
	}

	reading, err := g.store.Latest()
	if err != nil {
		g.logger.Debug("gate: no air quality data available")
		return Observation{}
	}

	age := now.Sub(reading.CapturedAt)
	if age > g.maxAge {
		g.logger.Debug("gate: air quality data too old, not injecting",
			"age", age.Round(time.Second), "max_age", g.maxAge)
		return Observation{}
	}

	return observationOf(reading)
}

// Inject sets the three observation fields on a host record.
// Absent data is written as explicit nil values.
func (g *Gate) Inject(record map[string]any, now time.Time) {
	if record == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gate: error injecting air quality data", "err", fmt.Sprint(r))
			record[FieldAQIValue] = nil
			record[FieldPrimaryFactor] = nil
			record[FieldAQICategory] = nil
		}
	}()

	obs := g.Current(now)
	if !obs.Available() {
		record[FieldAQIValue] = nil
		record[FieldPrimaryFactor] = nil
		record[FieldAQICategory] = nil
		return
	}

	record[FieldAQIValue] = *obs.AQIValue
	record[FieldPrimaryFactor] = *obs.PrimaryFactor
	record[FieldAQICategory] = *obs.Category

	if g.logSuccess {
		g.logger.Info("gate: injected air quality data",
			"aqi", *obs.AQIValue, "pollutant", *obs.PrimaryFactor, "level", *obs.Category)
	}
}
