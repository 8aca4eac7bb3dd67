package relay

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// JournalPage is the body served on the journal route.
type JournalPage struct {
	Entries []*journal.Entry `json:"entries"`
}

// handleJournal lists journal entries newest first.
func (r *Relay) handleJournal(c *fiber.Ctx) error {
	if r.config.Journal == nil {
		return errJournalDisabled
	}

	limit := c.QueryInt("limit", storage.DefaultListLimit)
	if limit <= 0 {
		return errInvalidLimit
	}

	entries, err := r.config.Journal.List(c.Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}

	return c.JSON(JournalPage{Entries: entries})
}
