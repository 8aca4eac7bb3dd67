package storage

import "errors"

// ErrNilEntry is returned by Put for a nil entry.
var ErrNilEntry = errors.New("cannot store nil journal entry")

// NotFoundError is returned when an entry doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "journal entry not found"
	}

	return "journal entry not found: " + e.ID
}
