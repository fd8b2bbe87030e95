package database

import "errors"

// Sentinel errors shared by the repositories.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write touched no rows
	// because another writer got there first.
	ErrConflict = errors.New("write conflict")

	// ErrLeaseHeld is returned when a sync lease could not be acquired
	// because another run holds it.
	ErrLeaseHeld = errors.New("sync lease held")
)
