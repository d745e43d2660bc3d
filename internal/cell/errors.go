package cell

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes storage errors.
type ErrorCode string

const (
	// ErrCodeBorrowConflict indicates an incompatible concurrent borrow.
	ErrCodeBorrowConflict ErrorCode = "BORROW_CONFLICT"

	// ErrCodeStaleHandle indicates the key's generation no longer matches its slot,
	// or the guard was detached by a replacement.
	ErrCodeStaleHandle ErrorCode = "STALE_HANDLE"
)

// Sentinels for errors.Is matching against *BorrowError.
var (
	ErrBorrowConflict = errors.New("borrow conflict")
	ErrStaleHandle    = errors.New("stale handle")
)

// BorrowError reports a failed slot access.
type BorrowError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Key is the key the caller used.
	Key Key

	// Held is the borrow state that blocked the acquisition (conflicts only).
	Held BorrowState

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *BorrowError) Error() string {
	if e.Code == ErrCodeBorrowConflict {
		return fmt.Sprintf("%s: %s (slot=%s, held=%s)", e.Code, e.Message, e.Key, e.Held)
	}
	return fmt.Sprintf("%s: %s (slot=%s)", e.Code, e.Message, e.Key)
}

// Is lets errors.Is match the package sentinels.
func (e *BorrowError) Is(target error) bool {
	switch target {
	case ErrBorrowConflict:
		return e.Code == ErrCodeBorrowConflict
	case ErrStaleHandle:
		return e.Code == ErrCodeStaleHandle
	}
	return false
}

// IsBorrowConflict returns true if err wraps a borrow conflict.
func IsBorrowConflict(err error) bool {
	var be *BorrowError
	if errors.As(err, &be) {
		return be.Code == ErrCodeBorrowConflict
	}
	return false
}

// IsStaleHandle returns true if err wraps a stale handle error.
func IsStaleHandle(err error) bool {
	var be *BorrowError
	if errors.As(err, &be) {
		return be.Code == ErrCodeStaleHandle
	}
	return false
}

func newConflict(k Key, held BorrowState, msg string) *BorrowError {
	return &BorrowError{Code: ErrCodeBorrowConflict, Key: k, Held: held, Message: msg}
}

func newStale(k Key, msg string) *BorrowError {
	return &BorrowError{Code: ErrCodeStaleHandle, Key: k, Message: msg}
}
