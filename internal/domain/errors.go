package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
	// Details is merged into the JSON error body when present.
	Details map[string]interface{} `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrInvalidTransition is returned when a floor plan is moved out of a terminal state.
var ErrInvalidTransition = errors.New("invalid floor plan status transition")

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

// ErrLimitExceeded reports an exhausted monthly quota. It uses 402 so clients
// can tell it apart from a generic conflict and prompt an upgrade.
func ErrLimitExceeded(resource Resource, limit, used int) *AppError {
	return &AppError{
		Code:    http.StatusPaymentRequired,
		Message: fmt.Sprintf("monthly %s limit reached, upgrade your subscription to continue", resource),
		Details: map[string]interface{}{
			"code":     "LIMIT_EXCEEDED",
			"resource": resource,
			"limit":    limit,
			"used":     used,
		},
	}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
