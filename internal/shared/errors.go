package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the operation is not valid for the entity's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden indicates the caller lacks authorization for this action.
	ErrForbidden = errors.New("forbidden")
	// ErrPolicyViolation indicates an amount or business-rule failure.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
)
