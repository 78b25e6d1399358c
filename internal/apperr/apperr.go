// Package apperr is the error taxonomy shared by the data-access layer and the
// HTTP surface. Every failure is classified into a Kind, and every Kind has a
// user-facing notification.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

type Kind int

const (
	KindGeneric Kind = iota
	KindConfig
	KindNotFound
	KindRateLimited
	KindServer
	KindAuth
	KindBadInput
	KindMalformed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindBadInput:
		return "bad_input"
	case KindMalformed:
		return "malformed"
	case KindCanceled:
		return "canceled"
	}
	return "generic"
}

var (
	ErrMissingCredentials = errors.New("storage credentials are not configured")
	ErrNotFound           = errors.New("not found")
)

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func BadInput(format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf(format, args...)}
}

// StatusError is a non-2xx answer from an HTTP collaborator.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Classify finds the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, ErrMissingCredentials) {
		return KindConfig
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var se *StatusError
	if errors.As(err, &se) {
		return kindForStatus(se.StatusCode)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return KindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "Forbidden":
			return KindAuth
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return KindRateLimited
		case "InternalError", "ServiceUnavailable":
			return KindServer
		}
	}

	return KindGeneric
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindBadInput
	case code >= 500:
		return KindServer
	}
	return KindGeneric
}

// Retryable reports whether a failed call is worth another attempt.
// Not-found, auth and input errors never are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch Classify(err) {
	case KindNotFound, KindAuth, KindBadInput, KindConfig, KindMalformed, KindCanceled:
		return false
	}
	return true
}

// HTTPStatus maps a Kind to the status code the API answers with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuth:
		return http.StatusForbidden
	case KindBadInput, KindMalformed:
		return http.StatusBadRequest
	case KindConfig:
		return http.StatusServiceUnavailable
	case KindServer:
		return http.StatusBadGateway
	case KindCanceled:
		return 499
	}
	return http.StatusInternalServerError
}
