package airquality

import (
	"encoding/json"
	"math"
	"time"
)

// statusSuccess is the only top-level status that carries usable data.
const statusSuccess = "success"

// Decode parses a raw API response body and validates it.
// Bodies that are not a JSON object are rejected as malformed payloads.
func Decode(body []byte, now time.Time) (Reading, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Reading{}, reject(RejectMalformed, "", "invalid JSON: %v", err)
	}
	if payload == nil {
		return Reading{}, reject(RejectMalformed, "", "payload is null")
	}
	return Validate(payload, now)
}

// Validate turns a decoded nearest_city payload into a Reading.
//
// Malformed input never panics; it yields a *ValidationError describing the
// first check that failed. An unrecognized pollutant code is not an error:
// the code is kept verbatim (non-string codes as their JSON text) and
// Reading.KnownPollutant reports false.
func Validate(payload map[string]any, now time.Time) (Reading, error) {
	if status, _ := payload["status"].(string); status != statusSuccess {
		return Reading{}, reject(RejectStatus, "status", "API reported status %v", describe(payload["status"]))
	}

	data, ok := asObject(payload["data"])
	if !ok || len(data) == 0 {
		return Reading{}, reject(RejectStructural, "data", "response missing data section")
	}

	current, _ := asObject(data["current"])
	pollution, ok := asObject(current["pollution"])
	if !ok || len(pollution) == 0 {
		return Reading{}, reject(RejectStructural, "data.current.pollution", "response missing pollution data")
	}

	rawAQI, present := pollution["aqius"]
	if !present || rawAQI == nil {
		return Reading{}, reject(RejectMissing, "aqius", "field is required")
	}
	aqi, ok := asNumber(rawAQI)
	if !ok {
		return Reading{}, reject(RejectInvalid, "aqius", "not a number: %v", describe(rawAQI))
	}
	if math.IsNaN(aqi) || math.IsInf(aqi, 0) || aqi < 0 || aqi > math.MaxInt32 {
		return Reading{}, reject(RejectInvalid, "aqius", "out of range: %v", aqi)
	}

	rawCode, present := pollution["mainus"]
	if !present || rawCode == nil {
		return Reading{}, reject(RejectMissing, "mainus", "field is required")
	}
	// Unknown or oddly typed codes never block collection; they pass through as text.
	code, ok := rawCode.(string)
	if !ok {
		code = describe(rawCode)
	}

	value := int(aqi)
	return Reading{
		Value:         value,
		Category:      CategoryFor(value),
		PrimaryFactor: PollutantName(code),
		CapturedAt:    now.UTC(),
		PollutantCode: code,
		Station: Station{
			City:    stringField(data, "city"),
			State:   stringField(data, "state"),
			Country: stringField(data, "country"),
		},
	}, nil
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func describe(v any) string {
	if v == nil {
		return "<missing>"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "<unprintable>"
	}
	return string(b)
}
