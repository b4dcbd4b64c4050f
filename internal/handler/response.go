package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the storefront UI
// always sees the same shapes:
//
//	success: whatever the handler returns (cartView, sessionView, ...)
//	failure: {"error": "validation_error", "message": "Email is required", "field": "email"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/service"
)

// maxBodyBytes bounds request bodies. A reorder of a large cart is the
// biggest thing a client legitimately sends.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending form field, for validation errors
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already out; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored
// so older clients keep working.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return nil
}

// errorStatus maps a sentinel in err's chain to an HTTP status and error type.
//
// ErrInvalidCredentials and ErrUnauthorized both become 401 but keep distinct
// error types: the UI shows the first under the login form and answers the
// second by opening the login dialog.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, apperror.ErrPersistence):
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Only AppError messages reach the client. Anything else (a raw driver error,
// a wrapped cause) could leak file paths or keys, so it becomes a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := errorStatus(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// resultStatus is errorStatus for a failed service.Result.
func resultStatus(kind service.ErrorKind) (int, string) {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case service.KindConflict:
		return http.StatusConflict, "conflict"
	case service.KindInvalidCredentials:
		return http.StatusUnauthorized, "invalid_credentials"
	case service.KindUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case service.KindPersistence:
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeResultError(w http.ResponseWriter, res service.Result) {
	status, errorType := resultStatus(res.Kind)
	writeJSON(w, status, ErrorResponse{Error: errorType, Message: res.Message})
}
