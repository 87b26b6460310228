package types

import "errors"

// Store errors.
var (
	ErrLockTimeout  = errors.New("lock not acquired before timeout")
	ErrCorruptStore = errors.New("plan store content is corrupt")
	ErrStoreClosed  = errors.New("plan store is closed")

	// ErrNoChange is returned by an Update callback to skip the write.
	ErrNoChange = errors.New("no change")
)

// Lookup and validation errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid ID")
	ErrDuplicateID       = errors.New("duplicate ID")
	ErrInvalidData       = errors.New("invalid data")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownField      = errors.New("unknown task field")
	ErrImmutableField    = errors.New("field is immutable")
	ErrInvalidContent    = errors.New("content must not be empty")
)
