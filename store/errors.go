package store

import "errors"

var (
	// ErrNotFound is returned for lookups of unknown post ids.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable is returned when the backing store cannot be reached
	// or rejects the request.
	ErrUnavailable = errors.New("store unavailable")
)
