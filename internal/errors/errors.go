// Package errors defines the error taxonomy shared by the RPC client and the
// query/mutation layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a query or mutation failure.
type Kind string

const (
	// KindDisabled marks a query whose preconditions are unmet. It is never
	// surfaced as an error; it exists so callers can name the idle state.
	KindDisabled Kind = "DISABLED"
	// KindFetchFailed means the endpoint answered with a non-success status.
	KindFetchFailed Kind = "FETCH_FAILED"
	// KindNetworkOrParse covers transport failures and malformed bodies.
	KindNetworkOrParse Kind = "NETWORK_OR_PARSE"
	// KindValidation means a mutation payload did not match its endpoint shape.
	KindValidation Kind = "VALIDATION"
)

// QueryError is the single error type produced by the query layer.
type QueryError struct {
	Kind       Kind   `json:"kind"`
	Resource   string `json:"resource,omitempty"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("[%s:%s] %s (status %d)", e.Kind, e.Resource, e.Message, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Resource, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Resource, e.Message)
	}
}

// Unwrap exposes the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is matches another *QueryError by kind so sentinel comparisons work.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Resource == "" || t.Resource == e.Resource)
}

// Retryable reports whether another attempt may succeed.
func (e *QueryError) Retryable() bool {
	switch e.Kind {
	case KindNetworkOrParse:
		return true
	case KindFetchFailed:
		return e.StatusCode >= http.StatusInternalServerError ||
			e.StatusCode == http.StatusRequestTimeout ||
			e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// Sentinels for errors.Is checks.
var (
	ErrDisabled       = &QueryError{Kind: KindDisabled, Message: "needs arguments or a signed in session"}
	ErrFetchFailed    = &QueryError{Kind: KindFetchFailed}
	ErrNetworkOrParse = &QueryError{Kind: KindNetworkOrParse}
	ErrValidation     = &QueryError{Kind: KindValidation}
)

// FetchFailed builds the error for a non-success response. The server message
// wins over the resource fallback when present.
func FetchFailed(resource string, status int, serverMessage, fallback string) *QueryError {
	msg := serverMessage
	if msg == "" {
		msg = fallback
	}
	return &QueryError{
		Kind:       KindFetchFailed,
		Resource:   resource,
		Message:    msg,
		StatusCode: status,
	}
}

// NetworkOrParse wraps a transport or decoding failure.
func NetworkOrParse(resource, message string, cause error) *QueryError {
	return &QueryError{
		Kind:     KindNetworkOrParse,
		Resource: resource,
		Message:  message,
		Cause:    cause,
	}
}

// Validation wraps a payload validation failure.
func Validation(resource string, cause error) *QueryError {
	return &QueryError{
		Kind:     KindValidation,
		Resource: resource,
		Message:  "invalid payload",
		Cause:    cause,
	}
}

// As extracts a *QueryError from an error chain.
func As(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable query error.
func IsRetryable(err error) bool {
	qe, ok := As(err)
	return ok && qe.Retryable()
}

// UserMessage returns the text suitable for a notification.
func UserMessage(err error, fallback string) string {
	if qe, ok := As(err); ok && qe.Kind == KindFetchFailed && qe.Message != "" {
		return qe.Message
	}
	return fallback
}
