package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []*eventstream.JournalRecordedEvent
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// FailWith makes subsequent publishes return err.
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *RecordingPublisher) PublishEntry(_ context.Context, event *eventstream.JournalRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns the published events in publish order.
func (p *RecordingPublisher) Events() []*eventstream.JournalRecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.JournalRecordedEvent(nil), p.events...)
}

func (p *RecordingPublisher) Close() error { return nil }
