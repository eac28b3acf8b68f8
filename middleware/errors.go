package middleware

import (
	"errors"
	"fmt"
)

// FailureKind categorizes why the gate rejected a connection.
// The kind is for logs and metrics only; callers always see the same generic rejection.
type FailureKind string

const (
	FailureConfigMissing FailureKind = "config_missing"
	FailureTokenAbsent   FailureKind = "token_absent"
	FailureTokenInvalid  FailureKind = "token_invalid"
	FailureInternal      FailureKind = "internal_fault"
)

// RejectionMessage is the only text a rejected client ever receives
const RejectionMessage = "Not authenticated"

// ErrAuthNotConfigured is the cause attached to FailureConfigMissing
var ErrAuthNotConfigured = errors.New("no auth configuration")

// AuthError is returned by the gate for every rejected connection
type AuthError struct {
	Kind      FailureKind
	Transport Transport
	Err       error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s over %s: %v", e.Kind, e.Transport, e.Err)
	}
	return fmt.Sprintf("%s over %s", e.Kind, e.Transport)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches another *AuthError by Kind
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newAuthError(kind FailureKind, transport Transport, err error) *AuthError {
	return &AuthError{Kind: kind, Transport: transport, Err: err}
}

// Kind sentinels for errors.Is
var (
	ErrConfigMissing = &AuthError{Kind: FailureConfigMissing}
	ErrTokenMissing  = &AuthError{Kind: FailureTokenAbsent}
	ErrTokenRejected = &AuthError{Kind: FailureTokenInvalid}
	ErrInternalFault = &AuthError{Kind: FailureInternal}
)

// FailureKindOf returns the kind of err, treating anything that is not an AuthError as internal
func FailureKindOf(err error) FailureKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return FailureInternal
}
