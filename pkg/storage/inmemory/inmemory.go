// Package inmemory provides a bounded in-memory journal store.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 100

// Driver keeps the most recent entries in memory. Once full, storing an entry
// evicts the oldest one.
type Driver struct {
	mu sync.RWMutex

	// entries is ordered oldest first.
	entries  []*journal.Entry
	byID     map[string]*journal.Entry
	capacity int
}

// NewDriver returns an empty store holding at most capacity entries.
func NewDriver(capacity int) *Driver {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Driver{
		byID:     make(map[string]*journal.Entry, capacity),
		capacity: capacity,
	}
}

func (d *Driver) Put(_ context.Context, entry *journal.Entry) error {
	if entry == nil {
		return storage.ErrNilEntry
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[entry.ID]; ok {
		return nil
	}

	if len(d.entries) == d.capacity {
		delete(d.byID, d.entries[0].ID)
		d.entries[0] = nil
		d.entries = d.entries[1:]
	}

	d.entries = append(d.entries, entry)
	d.byID[entry.ID] = entry
	return nil
}

func (d *Driver) Get(_ context.Context, id string) (*journal.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.byID[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return entry, nil
}

func (d *Driver) List(_ context.Context, limit int) ([]*journal.Entry, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n := min(limit, len(d.entries))
	result := make([]*journal.Entry, 0, n)
	for i := len(d.entries) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, d.entries[i])
	}

	return result, nil
}

// Len reports how many entries are held.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries)
}

func (d *Driver) Close() error {
	return nil
}
