// Package eventstream publishes relay journal events to external consumers.
package eventstream

import "context"

// Publisher publishes journal events to an event stream backend.
type Publisher interface {
	PublishEntry(ctx context.Context, event *JournalRecordedEvent) error
	Close() error
}
