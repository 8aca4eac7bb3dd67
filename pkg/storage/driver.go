// Package storage defines the persistence boundary for relay journal entries.
package storage

import (
	"context"

	"github.com/papercomputeco/streamrelay/pkg/journal"
)

// DefaultListLimit is used when List is called with a limit of zero or less.
const DefaultListLimit = 100

// Driver persists journal entries.
type Driver interface {
	// Put stores an entry. Storing an ID that already exists is a no-op.
	Put(ctx context.Context, entry *journal.Entry) error

	// Get returns the entry with the given ID or a NotFoundError.
	Get(ctx context.Context, id string) (*journal.Entry, error)

	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]*journal.Entry, error)

	// Close releases the store's resources.
	Close() error
}
