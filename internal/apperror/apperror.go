// Package apperror defines the error taxonomy shared by the storefront core.
//
// Every failure the core can report is an *AppError wrapping one of the
// sentinels below. Callers branch with errors.Is on the sentinel and show
// AppError.Message to the user.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPersistence        = errors.New("persistence failure")
	ErrUpstream           = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The message is shown verbatim.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports an operation attempted without a signed-in account.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials never says which of email or password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid email or password",
	}
}

// Persistence wraps a storage failure. The cause stays reachable through
// errors.Unwrap on the returned chain but is not part of the message.
func Persistence(message string, cause error) error {
	appErr := &AppError{Err: ErrPersistence, Message: message}
	if cause == nil {
		return appErr
	}
	return fmt.Errorf("%w: %w", appErr, cause)
}

// Upstream wraps a failure of an external collaborator such as the catalog.
func Upstream(message string, cause error) error {
	appErr := &AppError{Err: ErrUpstream, Message: message}
	if cause == nil {
		return appErr
	}
	return fmt.Errorf("%w: %w", appErr, cause)
}
