package airquality

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		reason string
	}{
		{
			name:   "protocol",
			err:    &FetchError{Kind: KindProtocol, Reason: "rate_limited", StatusCode: 429, Err: errors.New("rate limit exceeded")},
			kind:   KindProtocol,
			reason: "rate_limited",
		},
		{
			name:   "wrapped validation",
			err:    fmt.Errorf("decode: %w", &ValidationError{Rejection: RejectMissing, Field: "aqius"}),
			kind:   KindValidation,
			reason: "missing-field",
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("get: %w", context.DeadlineExceeded),
			kind:   KindTransport,
			reason: "network",
		},
		{
			name:   "dns",
			err:    &net.DNSError{Err: "no such host", Name: "api.airvisual.com"},
			kind:   KindTransport,
			reason: "network",
		},
		{
			name:   "internal fault",
			err:    InternalFault("panic", errors.New("boom")),
			kind:   KindInternal,
			reason: "panic",
		},
		{
			name:   "unknown",
			err:    errors.New("something else"),
			kind:   KindInternal,
			reason: "unexpected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %q, want %q", got, tt.kind)
			}
			if got := ReasonOf(tt.err); got != tt.reason {
				t.Errorf("ReasonOf = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	sentinel := errors.New("server error")
	err := &FetchError{Kind: KindProtocol, Reason: "server_error", StatusCode: 503, Err: sentinel}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected FetchError to unwrap to its cause")
	}
	if got := err.Error(); got != "protocol (server_error, HTTP 503): server error" {
		t.Errorf("unexpected message %q", got)
	}
}
