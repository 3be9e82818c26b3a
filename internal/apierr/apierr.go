// Package apierr centralizes the error-kind -> HTTP status mapping so
// internal/api handlers never hand-roll a status code. Grounded on the
// teacher's sentinel-error style (ErrSessionNotFound/ErrNotHost/
// ErrInvalidPhase in kiliankoe-gptdash/backend/internal/game/manager.go),
// generalized from three bare sentinels to a typed Kind plus a wrapped
// *Error the teacher never needed because its manager package was called
// directly rather than through an HTTP boundary with its own status table.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindPhaseMismatch Kind = "phase_mismatch"
	KindUnavailable   Kind = "unavailable"
)

// Error is the error kind every internal/api handler returns instead of a
// bare error. Hint is an optional machine-readable detail surfaced to the
// client alongside the kind (e.g. the phase the action actually needs).
type Error struct {
	Kind Kind
	Msg  string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error           { return New(KindNotFound, msg) }
func Validation(msg string) *Error         { return New(KindValidation, msg) }
func Unauthorized(msg string) *Error       { return New(KindAuthorization, msg) }
func PhaseMismatch(msg, hint string) *Error {
	return &Error{Kind: KindPhaseMismatch, Msg: msg, Hint: hint}
}
func Unavailable(msg string, err error) *Error { return Wrap(KindUnavailable, msg, err) }

// Status maps a Kind to the HTTP status spec.md §7 assigns it.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPhaseMismatch:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, or synthesizes an internal-error *Error
// wrapping it so every caller gets a consistent shape.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: "internal", Msg: "internal error", Err: err}
}
