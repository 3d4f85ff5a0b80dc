// Package httpx provides the JSON envelope, error mapping and request
// validation shared by every API handler.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel error kinds for the domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotReady     = errors.New("resource not ready")
)

// Error pairs a client-facing message with one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

// NewError builds an Error of the supplied kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// RespondError maps domain errors onto the {success:false,message} envelope.
// Unknown errors become a 500 with a generic message.
func RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "Validation failed", Errors: verr.Fields})
		return
	}
	status, fallback := statusFor(err)
	message := fallback
	var derr *Error
	if errors.As(err, &derr) && derr.Message != "" {
		message = derr.Message
	}
	Fail(w, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "Duplicate request"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, ErrNotReady):
		return http.StatusBadRequest, "Resource is not ready"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	status, _ := statusFor(err)
	return status < http.StatusInternalServerError
}
