package storage

import "errors"

// ErrNotFound is returned when no host or log entry matches the lookup.
var ErrNotFound = errors.New("storage: not found")
