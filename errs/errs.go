// Package errs provides structured error types shared across the fustream client.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category in the client's error taxonomy.
type Code string

const (
	// CodeAuth indicates missing or rejected credentials.
	CodeAuth Code = "auth"
	// CodeNetwork indicates a socket or HTTP transport failure.
	CodeNetwork Code = "network"
	// CodeUpstream indicates a venue-side rejection on the REST or control channel.
	CodeUpstream Code = "upstream"
	// CodeDecode indicates a malformed or unrecognized wire payload.
	CodeDecode Code = "decode"
	// CodeTokenExpired indicates the session token degraded after renewal retries were exhausted.
	CodeTokenExpired Code = "token_expired"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
)

// E carries structured error information produced across the client.
type E struct {
	Code    Code
	HTTP    int
	Message string
	RawBody string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given code.
func New(code Code, opts ...Option) *E {
	e := &E{Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawBody captures the raw venue response body.
func WithRawBody(body string) Option {
	return func(e *E) {
		e.RawBody = strings.TrimSpace(body)
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := []string{"code=" + string(e.Code)}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawBody != "" {
		parts = append(parts, "body="+strconv.Quote(e.RawBody))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the taxonomy code from err, unwrapping as needed.
// Errors outside the taxonomy report an empty code.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return CodeOf(err) == CodeAuth }

// IsTokenExpired reports whether err is a degraded session token.
func IsTokenExpired(err error) bool { return CodeOf(err) == CodeTokenExpired }
