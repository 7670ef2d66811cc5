package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeOutOfScope      = "OUT_OF_SCOPE"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUpstreamFailure = "UPSTREAM_FAILURE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// Sentinel errors returned by the engine layer. Handlers translate these to
// HTTP statuses; anything else is an upstream failure and is surfaced
// generically, never with storage error text.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrOutOfScope      = errors.New("credential out of scope for workspace")
	ErrForbidden       = errors.New("insufficient role or scope")
	ErrNoAccess        = errors.New("no access to workspace")
	ErrInvalid         = errors.New("invalid input")
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}
