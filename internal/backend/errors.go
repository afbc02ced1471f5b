package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a missing credential or bad setting. Not retryable.
	KindConfig
	// KindTransient covers rate limits, timeouts, and server errors. The user
	// may retry.
	KindTransient
	// KindAuth is a rejected credential.
	KindAuth
	// KindMalformed is a response that did not fit the expected shape.
	KindMalformed
	// KindNotImplemented is returned by declared but unbuilt backends.
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindTransient:
		return "temporarily unavailable"
	case KindAuth:
		return "authentication error"
	case KindMalformed:
		return "malformed response"
	case KindNotImplemented:
		return "not implemented"
	default:
		return "error"
	}
}

// Error is a classified backend failure.
type Error struct {
	Backend Model
	Op      string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Backend)
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotImplementedError is returned by every operation of a backend that is
// declared but not built.
type NotImplementedError struct {
	Backend Model
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s service is not yet implemented", e.Backend)
}

// UnknownBackendError reports a backend identifier with no registration.
type UnknownBackendError struct {
	Model Model
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend: %s", e.Model)
}

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ni *NotImplementedError
	if errors.As(err, &ni) {
		return KindNotImplemented
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether the user may reasonably retry.
func IsRetryable(err error) bool { return KindOf(err) == KindTransient }

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool { return KindOf(err) == KindAuth }

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool { return KindOf(err) == KindConfig }

// IsMalformed checks if an error is a malformed-response error.
func IsMalformed(err error) bool { return KindOf(err) == KindMalformed }

// IsNotImplemented checks if an error comes from an unbuilt backend.
func IsNotImplemented(err error) bool { return KindOf(err) == KindNotImplemented }

// Hint returns user-facing guidance for err.
func Hint(err error) string {
	switch KindOf(err) {
	case KindTransient:
		return "The AI service is busy or rate limited. Please wait a moment and try again."
	case KindAuth:
		return "The AI service rejected the credentials. Check the API key for this backend."
	case KindConfig:
		return "The backend is not configured. Set the required API key or settings and try again."
	case KindMalformed:
		return "The model returned an invalid response. Trying again may help."
	case KindNotImplemented:
		return "This backend is coming soon. Choose another backend."
	}
	var ub *UnknownBackendError
	if errors.As(err, &ub) {
		return "Run 'critic models list' to see available backends."
	}
	return ""
}

// kindForStatus maps an HTTP status code onto a Kind.
func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return KindTransient
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}

func newError(model Model, kind Kind, err error) *Error {
	return &Error{Backend: model, Kind: kind, Err: err}
}

func configError(model Model, format string, args ...any) *Error {
	return newError(model, KindConfig, fmt.Errorf(format, args...))
}
