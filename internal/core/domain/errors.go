package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. Handlers map them to HTTP statuses.
var (
	// ErrUnauthenticated indicates a missing, malformed or rejected bearer credential.
	// HTTP Status: 401 Unauthorized
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates a missing or malformed request field.
	// HTTP Status: 400 Bad Request
	ErrValidation = errors.New("validation failed")

	// ErrForbidden indicates the caller's role does not allow the operation.
	// HTTP Status: 403 Forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested profile does not exist.
	// HTTP Status: 404 Not Found
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate submission or a unique key clash.
	// HTTP Status: 409 Conflict
	ErrConflict = errors.New("conflict")

	// ErrServiceUnavailable indicates an inference service could not be reached.
	// HTTP Status: 503 Service Unavailable
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUpstream indicates an inference service answered with a failure or an unusable body.
	// HTTP Status: upstream status (4xx/5xx), 504 on timeout, 502 otherwise
	ErrUpstream = errors.New("upstream error")
)

// ValidationError names the offending request field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
