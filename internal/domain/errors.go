package domain

import "errors"

var (
	// ErrNotFound is returned by point reads and replaces when the document
	// does not exist in its partition.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a replace carries a stale version.
	ErrConflict = errors.New("document version conflict")

	ErrTerminalTrip      = errors.New("trip is in a terminal status")
	ErrIllegalTransition = errors.New("illegal status transition")
)
