package testutils

import (
	"time"

	"github.com/papercomputeco/streamrelay/pkg/journal"
)

// NewTestEntry creates a successful buffered entry for route.
func NewTestEntry(route string) *journal.Entry {
	return journal.NewEntry(journal.Outcome{
		Route:   route,
		Status:  200,
		Started: time.Now(),
	})
}
