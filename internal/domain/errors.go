// Package domain defines the error kinds and request-scoped values shared by
// every layer of the application. Higher layers such as handlers use these
// sentinel values to distinguish failure scenarios: ErrConflict signals a
// lost race on a seat, hold or counter; ErrNotFound a missing entity inside
// the caller's tenant; ErrValidation a request that violates an invariant;
// ErrAccessDenied a tenant/user mismatch or a fiscally closed operation;
// ErrTimeout an external dependency that exceeded its deadline; ErrInternal
// a broken programming invariant.
package domain

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when an optimistic race is lost, e.g. two clients
// holding the same seat or a stale hold used at consume time. Handlers
// translate this into an HTTP 409 response; callers may retry.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a referenced entity does not exist within the
// caller's tenant scope. Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when a request violates a domain invariant, such
// as overlapping price stages or a customer without any contact info.
// Handlers translate this into an HTTP 400 response.
var ErrValidation = errors.New("validation")

// ErrAccessDenied is returned when the authenticated user does not belong to
// the resolved tenant, when a sale is attempted against a closed fiscal day,
// or when a voided series or expired hold is used. HTTP 403.
var ErrAccessDenied = errors.New("access denied")

// ErrTimeout is returned when an external collaborator (payment processor,
// broker) exceeds the total deadline passed to it. Retriable by the caller;
// the core never retries checkout itself. HTTP 504.
var ErrTimeout = errors.New("timeout")

// ErrInternal marks a broken programming invariant. It is logged with full
// detail and surfaced as an opaque HTTP 500.
var ErrInternal = errors.New("internal")

// Conflictf wraps ErrConflict with a formatted description.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted description.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Validationf wraps ErrValidation with a formatted description.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// AccessDeniedf wraps ErrAccessDenied with a formatted description.
func AccessDeniedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrAccessDenied}, args...)...)
}

// Timeoutf wraps ErrTimeout with a formatted description.
func Timeoutf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTimeout}, args...)...)
}

// Internalf wraps ErrInternal with a formatted description.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInternal}, args...)...)
}
