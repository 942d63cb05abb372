package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	// ErrDuplicateEntry marks a history append whose timestamp is already
	// stored. This is a rejected duplicate delivery, not a failure.
	ErrDuplicateEntry = errors.New("duplicate history entry")

	// ErrClosed marks operations against a closed store.
	ErrClosed = errors.New("store closed")
)
