package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every layer. AppError values wrap one of these so
// callers can branch with errors.Is without caring about the message.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrGone           = errors.New("gone")
	ErrUnprocessable  = errors.New("unprocessable entity")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with an explicit code and status.
func New(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s with id %s not found", resource, id), http.StatusNotFound, ErrNotFound)
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return New("ALREADY_EXISTS", fmt.Sprintf("%s with %s %q already exists", resource, field, value), http.StatusConflict, ErrAlreadyExists)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return New("INVALID_INPUT", message, http.StatusBadRequest, ErrInvalidInput)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return New("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return New("FORBIDDEN", message, http.StatusForbidden, ErrForbidden)
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return New("CONFLICT", message, http.StatusConflict, ErrConflict)
}

// Gone creates a 410 error.
func Gone(message string) *AppError {
	return New("GONE", message, http.StatusGone, ErrGone)
}

// Unprocessable creates a 422 error.
func Unprocessable(message string) *AppError {
	return New("UNPROCESSABLE", message, http.StatusUnprocessableEntity, ErrUnprocessable)
}

// ServiceUnavailable creates a 503 error wrapping the underlying cause.
func ServiceUnavailable(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrServiceUnavail
	} else {
		cause = fmt.Errorf("%w: %w", ErrServiceUnavail, cause)
	}
	return New("SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable, cause)
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return New("INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError, err)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
