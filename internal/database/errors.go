package database

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleWrite is returned when a versioned update lost a race.
	ErrStaleWrite = errors.New("record was modified concurrently")
)
