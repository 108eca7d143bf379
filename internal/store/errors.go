package store

import "errors"

// Common errors returned by store operations.
//
// Check with errors.Is():
//
//	if errors.Is(err, store.ErrUnknownDriver) {
//	    // Handle a DSN for a backend that was never imported
//	}
var (
	// ErrUnknownDriver is returned by Open when no backend is registered
	// under the requested driver name.
	ErrUnknownDriver = errors.New("unknown store driver")

	// ErrExecutionNotFound is returned when finalizing a journal row
	// that does not exist.
	ErrExecutionNotFound = errors.New("execution not found")
)
