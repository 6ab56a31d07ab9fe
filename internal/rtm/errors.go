package rtm

import "errors"

// Error kinds surfaced by the store. Callers match with errors.Is; the
// wrapped message carries the identifiers involved.
var (
	// ErrNotFound is returned by Get/Remove/Update for unknown ids.
	ErrNotFound = errors.New("requirement not found")

	// ErrDuplicate is returned by Add when the id already exists.
	ErrDuplicate = errors.New("requirement already exists")
)
