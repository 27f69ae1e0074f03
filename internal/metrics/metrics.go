package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts fetch cycles by outcome (success, failure)
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqi_fetch_attempts_total",
			Help: "Total number of air quality fetch attempts",
		},
		[]string{"outcome"},
	)

	// FetchFailures counts failed fetch cycles by error kind and reason
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqi_fetch_failures_total",
			Help: "Total number of failed air quality fetch attempts",
		},
		[]string{"kind", "reason"},
	)

	// FetchLatency tracks how long one fetch cycle takes
	FetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aqi_fetch_duration_seconds",
			Help:    "Duration of air quality fetch cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqi_consecutive_failures",
			Help: "Number of consecutive failed fetch attempts since the last success",
		},
	)

	// RetryWaitSeconds is the backoff wait chosen after the most recent failure
	RetryWaitSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqi_retry_wait_seconds",
			Help: "Backoff wait applied after the most recent failure",
		},
	)

	LastValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqi_last_value",
			Help: "Most recently collected US AQI value",
		},
	)

	ReadingAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqi_reading_age_seconds",
			Help: "Age of the cached reading in seconds (-1 when none)",
		},
	)

	// ReadingFresh is 1 while the cached reading is inside the freshness window
	ReadingFresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqi_reading_fresh",
			Help: "Whether the cached reading may be served to the pipeline",
		},
	)

	UnknownPollutants = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aqi_unknown_pollutant_total",
			Help: "Readings accepted with an unrecognized pollutant code",
		},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqi_publish_errors_total",
			Help: "Total number of failed reading publications",
		},
		[]string{"publisher"},
	)
)
