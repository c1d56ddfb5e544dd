package apperror

import (
	"fmt"
	"net/http"
)

// Operation code families. Every merchant-facing error code is family base
// plus a suffix that fixes the HTTP status.
const (
	FamilyInit    = 1000 // payment init and status query
	FamilyConfirm = 2000 // confirm and team registration
	FamilyCancel  = 3000 // cancel / reverse / refund

	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal = 9999
)

// Code suffixes within a family.
const (
	suffixAuth       = 1
	suffixValidation = 100
	suffixForbidden  = 403
	suffixNotFound   = 404
	suffixConflict   = 409
	suffixLimit      = 422
	suffixRateLimit  = 429
	suffixUpstream   = 502
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       int               `json:"errorCode"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"` // wrapped internal error, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches field-level detail to the error and returns it.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError; the HTTP status is derived from the code suffix.
func New(code int, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatusFor(code),
	}
}

// Wrap creates an AppError carrying an internal cause.
func Wrap(code int, message string, err error) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

func httpStatusFor(code int) int {
	if code == CodeInternal {
		return http.StatusInternalServerError
	}
	switch code % 1000 {
	case suffixAuth:
		return http.StatusUnauthorized
	case suffixValidation:
		return http.StatusBadRequest
	case suffixForbidden:
		return http.StatusForbidden
	case suffixNotFound:
		return http.StatusNotFound
	case suffixConflict:
		return http.StatusConflict
	case suffixLimit:
		return http.StatusUnprocessableEntity
	case suffixRateLimit:
		return http.StatusTooManyRequests
	case suffixUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ---- Authentication ----

func ErrAuth(family int) *AppError {
	return New(family+suffixAuth, "Invalid token or team credentials")
}

func ErrTeamLocked(family int) *AppError {
	return New(family+suffixForbidden, "Team is temporarily locked")
}

func ErrTeamInactive(family int) *AppError {
	return New(family+suffixForbidden, "Team is not active")
}

func ErrReplay(family int) *AppError {
	return New(family+suffixForbidden, "Duplicate signed request inside the replay window")
}

// ---- Validation ----

func Validation(family int, message string) *AppError {
	return New(family+suffixValidation, message)
}

// ---- Resources & state ----

func ErrNotFound(family int, entity string) *AppError {
	return New(family+suffixNotFound, fmt.Sprintf("%s not found", entity))
}

func ErrConflict(family int, message string) *AppError {
	return New(family+suffixConflict, message)
}

// ErrWrongState reports a lifecycle operation against a payment whose current
// status does not allow it.
func ErrWrongState(family int, message string) *AppError {
	return New(family+suffixConflict, message)
}

func ErrLimitExceeded(family int, message string) *AppError {
	return New(family+suffixLimit, message)
}

// ---- Rate limiting ----

func ErrRateLimited(family int) *AppError {
	return New(family+suffixRateLimit, "Rate limit exceeded")
}

// ---- Upstream & system ----

func ErrBankUnavailable(family int, err error) *AppError {
	return Wrap(family+suffixUpstream, "Acquiring bank is unavailable", err)
}

// InternalError wraps an unexpected failure as code 9999.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", err)
}
