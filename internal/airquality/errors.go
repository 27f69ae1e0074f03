package airquality

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the operational classification of a failed fetch cycle.
// Kinds only drive logging and metrics; the scheduler retries all of them alike.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindProtocol   ErrorKind = "protocol"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

// Rejection classifies why a payload was refused by the validator.
type Rejection string

const (
	RejectStatus     Rejection = "status-error"
	RejectStructural Rejection = "structural-error"
	RejectMissing    Rejection = "missing-field"
	RejectInvalid    Rejection = "invalid-value"
	RejectMalformed  Rejection = "malformed-payload"
)

// ValidationError is returned when an API payload cannot produce a Reading.
type ValidationError struct {
	Rejection Rejection
	Field     string
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Rejection, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Rejection, e.Detail)
}

func reject(r Rejection, field, format string, args ...any) *ValidationError {
	return &ValidationError{Rejection: r, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// FetchError describes a failed attempt to obtain a payload from the API.
type FetchError struct {
	Kind ErrorKind
	// Reason is a short, low-cardinality label such as "auth_failed" or "timeout".
	Reason     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s, HTTP %d): %v", e.Kind, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// InternalFault wraps an unexpected failure, including recovered panics.
func InternalFault(reason string, err error) *FetchError {
	return &FetchError{Kind: KindInternal, Reason: reason, Err: err}
}

// KindOf classifies any error produced by a fetch cycle.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransport
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransport
	}
	return KindInternal
}

// ReasonOf returns the low-cardinality reason label for err.
func ReasonOf(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Reason != "" {
		return fe.Reason
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return string(ve.Rejection)
	}
	switch KindOf(err) {
	case KindTransport:
		return "network"
	default:
		return "unexpected"
	}
}
