package providers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/aqi-collector/internal/airquality"
)

// DefaultAirVisualURL is the IQAir nearest_city endpoint.
const DefaultAirVisualURL = "http://api.airvisual.com/v2/nearest_city"

// AirVisualConfig configures the AirVisual provider.
type AirVisualConfig struct {
	APIKey    string
	Latitude  float64
	Longitude float64

	// BaseURL overrides DefaultAirVisualURL.
	BaseURL string
	// Timeout bounds one request, including reading the body.
	Timeout   time.Duration
	UserAgent string

	// BreakerTimeout is how long the circuit stays open before a probe is
	// allowed. Keep it below the shortest backoff wait so the breaker never
	// rejects a scheduled attempt on its own.
	BreakerTimeout time.Duration

	Logger *slog.Logger
}

// AirVisualProvider implements the airquality.Provider interface for IQAir AirVisual.
type AirVisualProvider struct {
	name      string
	apiKey    string
	lat       string
	lon       string
	timeout   time.Duration
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	now       func() time.Time
}

func NewAirVisualProvider(client *http.Client, cfg AirVisualConfig) *AirVisualProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAirVisualURL
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 2 * time.Minute
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "airvisual",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &AirVisualProvider{
		name:      "airvisual",
		apiKey:    cfg.APIKey,
		lat:       strconv.FormatFloat(cfg.Latitude, 'f', -1, 64),
		lon:       strconv.FormatFloat(cfg.Longitude, 'f', -1, 64),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		httpCfg: HTTPClientConfig{
			Client:  client,
			BaseURL: baseURL,
		},
		circuit: cb,
		now:     time.Now,
	}
}

func (p *AirVisualProvider) Name() string {
	return p.name
}

// CircuitState reports the breaker state for status pages.
func (p *AirVisualProvider) CircuitState() string {
	return p.circuit.State().String()
}

// Fetch performs one request against the nearest_city endpoint and validates the response.
func (p *AirVisualProvider) Fetch(ctx context.Context) (airquality.Reading, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", p.lat)
		values.Set("lon", p.lon)
		values.Set("key", p.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.httpCfg.BaseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if p.userAgent != "" {
			req.Header.Set("User-Agent", p.userAgent)
		}
		return req, nil
	}

	body, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return airquality.Reading{}, err
	}

	return airquality.Decode(body, p.now())
}
