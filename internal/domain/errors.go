package domain

import (
	"errors"
	"sort"
	"strings"
)

// Common errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("access forbidden: you don't own this resource")
	ErrInvalidID = errors.New("invalid id")
)

// Account errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("please verify your email first, your email is not verified")
	ErrInvalidToken       = errors.New("link is invalid or has expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
)

// Catalog and schedule errors
var (
	ErrPackageNotFound    = errors.New("package not found")
	ErrPackageInactive    = errors.New("package is not active")
	ErrClassNotFound      = errors.New("class not found")
	ErrClassLocked        = errors.New("class is locked until 15 minutes before start")
	ErrMeetingLinkMissing = errors.New("the meeting link has not been added yet")
)

// Payment errors
var (
	ErrGatewayUnavailable = errors.New("payment gateway error")
	ErrSignatureMismatch  = errors.New("signature verification failed")
	ErrPaymentNotFound    = errors.New("payment record not found")
)

// ValidationError carries per-field input errors that are shown inline to the user.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field, keeping the first one
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed validation
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
