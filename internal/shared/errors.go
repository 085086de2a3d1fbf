package shared

import "errors"

var (
	// ErrNotFound indicates the resource does not exist or does not belong
	// to the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a referential-integrity or uniqueness violation
	// surfaced as a domain error.
	ErrConflict = errors.New("conflict")
	// ErrPersistence wraps storage faults that are not otherwise classified.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidation marks field-level constraint violations, e.g. a cart
	// quantity outside the 1-100 range.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the user lacks the required role.
	ErrForbidden = errors.New("forbidden")
)
