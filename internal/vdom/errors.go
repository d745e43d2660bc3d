package vdom

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while rendering or diffing.
//
// Runtime errors include:
//   - Invariant violations: old/new render variants disagree, missing trees
//   - Render failures: a render function returned an error or a borrow failed
//   - Render quota: one flush re-rendered more scopes than allowed
//   - Unknown scopes: an id that is not (or no longer) mounted
//
// Borrow errors from package cell are carried in Err, so cell.IsBorrowConflict
// and cell.IsStaleHandle match through a RuntimeError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Scope identifies the affected scope, when there is one.
	Scope ScopeID

	// Component names the affected scope's component.
	Component string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvariantViolation is fatal to the current diff pass.
	ErrCodeInvariantViolation RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeRenderFailed indicates a render was abandoned for one scope.
	ErrCodeRenderFailed RuntimeErrorCode = "RENDER_FAILED"

	// ErrCodeQuotaExceeded indicates a flush exceeded the render quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "RENDER_QUOTA_EXCEEDED"

	// ErrCodeScopeNotFound indicates an unknown or unmounted scope.
	ErrCodeScopeNotFound RuntimeErrorCode = "SCOPE_NOT_FOUND"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Component != "" {
		msg = fmt.Sprintf("%s (scope=%d, component=%s)", msg, e.Scope, e.Component)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsInvariantViolation returns true if err wraps an invariant violation.
func IsInvariantViolation(err error) bool {
	return hasCode(err, ErrCodeInvariantViolation)
}

// IsRenderFailure returns true if err wraps an abandoned render.
func IsRenderFailure(err error) bool {
	return hasCode(err, ErrCodeRenderFailed)
}

// IsQuotaError returns true if err wraps a render quota error.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsFatal reports whether err must stop the current pass.
func IsFatal(err error) bool {
	return IsInvariantViolation(err) || IsQuotaError(err)
}

// Code extracts the runtime error code from err, or "" if there is none.
func Code(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasCode(err error, code RuntimeErrorCode) bool {
	// errors.Join results hold several RuntimeErrors; errors.As only finds the first.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if hasCode(e, code) {
				return true
			}
		}
		return false
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewInvariantError creates a RuntimeError for an invariant violation.
func NewInvariantError(s *Scope, message string) *RuntimeError {
	e := &RuntimeError{Code: ErrCodeInvariantViolation, Message: message}
	if s != nil {
		e.Scope = s.id
		e.Component = s.comp.name
	}
	return e
}

// NewRenderError creates a RuntimeError for an abandoned render.
func NewRenderError(s *Scope, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeRenderFailed,
		Message:   "render abandoned",
		Scope:     s.id,
		Component: s.comp.name,
		Err:       err,
	}
}

// NewQuotaError creates a RuntimeError for an exceeded render quota.
func NewQuotaError(renders, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("flush exceeded render quota (%d > %d)", renders, limit),
	}
}

func newScopeNotFound(id ScopeID) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeScopeNotFound,
		Message: fmt.Sprintf("scope %d is not mounted", id),
		Scope:   id,
	}
}
