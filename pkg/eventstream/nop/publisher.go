package nop

import (
	"context"

	"github.com/mindlinkco/mindlink/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTimeline validates input and otherwise does nothing.
func (p *Publisher) PublishTimeline(_ context.Context, event *eventstream.TimelineAppendedEvent) error {
	if event == nil {
		return eventstream.ErrNilTimelineEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
