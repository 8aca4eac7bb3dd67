// Package nop provides a Publisher that drops every event.
package nop

import (
	"context"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

// Publisher is used when no event stream is configured.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishEntry validates event and otherwise does nothing.
func (p *Publisher) PublishEntry(_ context.Context, event *eventstream.JournalRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

func (p *Publisher) Close() error {
	return nil
}
