package store

import "errors"

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrNotAllowed is returned when an operation is rejected by policy,
	// such as removing a file while it is uploading.
	ErrNotAllowed = errors.New("operation not allowed")

	// ErrStaleProgress is returned when an update would move a session's
	// uploaded size backwards.
	ErrStaleProgress = errors.New("uploaded size may not decrease")
)
