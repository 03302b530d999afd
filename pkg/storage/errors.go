package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("statement store closed")

	// ErrInvalidStatement is returned when a statement has no text.
	ErrInvalidStatement = errors.New("statement text is empty")
)
