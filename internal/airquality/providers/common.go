package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/aqi-collector/internal/airquality"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// HTTPClientConfig bundles the HTTP client and the endpoint it talks to.
type HTTPClientConfig struct {
	Client  *http.Client
	BaseURL string
}

var (
	errAuthFailed       = errors.New("authentication failed, check API key")
	errRateLimited      = errors.New("rate limit exceeded")
	errServerError      = errors.New("server error")
	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
	errNoHTTPClient     = errors.New("http client not configured")
)

// doRequest executes exactly one HTTP request through the circuit breaker and
// returns the body of a 200 response. Every failure is returned as an
// *airquality.FetchError.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, airquality.InternalFault("no_http_client", errNoHTTPClient)
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, airquality.InternalFault("build_request", err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, transportError(ctx, cfg.BaseURL, execErr)
		}
		defer resp.Body.Close()

		if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, statusErr
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, transportError(ctx, cfg.BaseURL, readErr)
		}
		return body, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &airquality.FetchError{
				Kind:   airquality.KindTransport,
				Reason: "circuit_open",
				Err:    fmt.Errorf("%w: %v", errCircuitOpen, err),
			}
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, airquality.InternalFault("breaker_result", fmt.Errorf("unexpected result type %T from circuit breaker", result))
	}
	return body, nil
}

// classifyStatus maps a non-200 status code to a protocol error.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized:
		return &airquality.FetchError{Kind: airquality.KindProtocol, Reason: "auth_failed", StatusCode: code, Err: errAuthFailed}
	case code == http.StatusTooManyRequests:
		return &airquality.FetchError{Kind: airquality.KindProtocol, Reason: "rate_limited", StatusCode: code, Err: errRateLimited}
	case code >= 500 && code < 600:
		return &airquality.FetchError{Kind: airquality.KindProtocol, Reason: "server_error", StatusCode: code, Err: errServerError}
	default:
		return &airquality.FetchError{Kind: airquality.KindProtocol, Reason: "unexpected_status", StatusCode: code, Err: errUnexpectedStatus}
	}
}

// transportError classifies a network level failure. The request URL is
// replaced with baseURL so the API key never ends up in logs.
func transportError(ctx context.Context, baseURL string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = baseURL
	}

	reason := "network"
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		reason = "dns"
	}

	return &airquality.FetchError{Kind: airquality.KindTransport, Reason: reason, Err: err}
}
