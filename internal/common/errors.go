// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hxuan190/broker-engine/internal/domain"
)

// HttpError represents an HTTP error with status code and message.
// BrokerCode carries the settlement abort code when there is one.
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
	BrokerCode uint32
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

// HTTP Error constructors

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

func HTTPErrorUnauthorized(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    messageOrDefault(msg, "Unauthorized"),
	}
}

func HTTPErrorForbidden(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    messageOrDefault(msg, "Forbidden"),
	}
}

func HTTPErrorResourceConflict(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusConflict,
		Code:       "RESOURCE_CONFLICT",
		Message:    messageOrDefault(msg, "Resource conflict"),
	}
}

func HTTPErrorUnprocessable(code, msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       code,
		Message:    messageOrDefault(msg, "Unprocessable request"),
	}
}

// FromError maps a settlement error to its HTTP form. Errors without a
// broker code are treated as a rejected request.
func FromError(err error) *HttpError {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var be *domain.BrokerError
	if !errors.As(err, &be) {
		return HTTPErrorBadRequest(err.Error())
	}

	var out *HttpError
	switch be {
	case domain.ErrUnauthorized:
		out = HTTPErrorForbidden(err.Error())
	case domain.ErrNotInitialized, domain.ErrAlreadyInitialized:
		out = HTTPErrorResourceConflict(err.Error())
	case domain.ErrProtocolDisabled, domain.ErrInvalidPath:
		out = HTTPErrorBadRequest(err.Error())
	case domain.ErrUnfeasible:
		out = HTTPErrorUnprocessable("UNFEASIBLE", err.Error())
	case domain.ErrMisconduct:
		out = HTTPErrorUnprocessable("MISCONDUCT", err.Error())
	default:
		out = HTTPErrorInternalError(err.Error())
	}
	out.BrokerCode = be.Code
	return out
}
