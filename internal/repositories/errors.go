package repositories

import "errors"

var (
	// ErrNotFound is returned when no document matches the filter.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index would be violated.
	ErrDuplicate = errors.New("duplicate key")
)
