package airquality

import (
	"time"
)

// Category represents a normalized US AQI severity level.
type Category string

const (
	CategoryGood               Category = "Good"
	CategoryModerate           Category = "Moderate"
	CategoryUnhealthySensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          Category = "Unhealthy"
	CategoryVeryUnhealthy      Category = "Very Unhealthy"
	CategoryHazardous          Category = "Hazardous"
)

// CategoryFor buckets an AQI value into its severity level.
func CategoryFor(aqi int) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	case aqi <= 150:
		return CategoryUnhealthySensitive
	case aqi <= 200:
		return CategoryUnhealthy
	case aqi <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// pollutantNames maps AirVisual "mainus" codes to readable names.
var pollutantNames = map[string]string{
	"p2": "PM2.5",
	"p1": "PM10",
	"o3": "Ozone",
	"n2": "NO2",
	"s2": "SO2",
	"co": "CO",
}

// PollutantName converts a pollutant code to its readable name.
// Unrecognized codes are returned unchanged.
func PollutantName(code string) string {
	if name, ok := pollutantNames[code]; ok {
		return name
	}
	return code
}

// IsKnownPollutant reports whether code is one of the documented pollutant codes.
func IsKnownPollutant(code string) bool {
	_, ok := pollutantNames[code]
	return ok
}

// Station describes where the reporting monitor is, as returned by the API.
// Fields are empty when the payload does not carry them.
type Station struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Reading is one normalized, validated air quality observation.
// Readings are only built by Validate.
type Reading struct {
	Value         int       `json:"aqi"`
	Category      Category  `json:"category"`
	PrimaryFactor string    `json:"primaryFactor"`
	CapturedAt    time.Time `json:"capturedAt"` // always UTC

	// PollutantCode is the raw "mainus" code the factor was derived from.
	PollutantCode string  `json:"pollutantCode"`
	Station       Station `json:"station"`
}

// KnownPollutant reports whether the reading's pollutant code was recognized.
func (r Reading) KnownPollutant() bool {
	return IsKnownPollutant(r.PollutantCode)
}
