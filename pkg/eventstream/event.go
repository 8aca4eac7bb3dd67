package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamrelay/pkg/journal"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeJournalRecorded is emitted after a journal entry is stored.
	EventTypeJournalRecorded = "relay.journal.recorded"
)

// JournalRecordedEvent is the transport-neutral payload for a stored entry.
type JournalRecordedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Entry         *journal.Entry `json:"entry"`
}

// NewJournalRecordedEvent wraps entry in a v1 event with a fresh ID.
func NewJournalRecordedEvent(entry *journal.Entry) *JournalRecordedEvent {
	return &JournalRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeJournalRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Entry:         entry,
	}
}
