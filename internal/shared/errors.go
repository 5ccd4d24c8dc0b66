package shared

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by every module. Services return these
// sentinels (wrapped or bare) and the HTTP layer maps them to status
// codes; unexpected storage faults are wrapped in ErrStoreUnavailable.
var (
	// ErrUnauthenticated indicates a missing, expired or revoked session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleNotPermitted indicates the actor's role may not perform the action on the target's role.
	ErrRoleNotPermitted = errors.New("role not permitted")
	// ErrNotDirectChild indicates a mutating action on an account that is not a direct child.
	ErrNotDirectChild = errors.New("target is not a direct child")
	// ErrNotInSubtree indicates a view on an account outside the actor's subtree.
	ErrNotInSubtree = errors.New("target is not in subtree")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount indicates a non-positive or malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates a balance cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidHierarchy indicates a structural violation on account creation.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")
	// ErrDuplicateIdentity indicates a username collision on account creation.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrStoreUnavailable indicates a transient storage failure; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsDenied reports whether err is one of the authorization failures.
func IsDenied(err error) bool {
	return errors.Is(err, ErrRoleNotPermitted) ||
		errors.Is(err, ErrNotDirectChild) ||
		errors.Is(err, ErrNotInSubtree)
}

// ValidationError carries per-field detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
