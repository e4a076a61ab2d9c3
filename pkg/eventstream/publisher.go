package eventstream

import "context"

// Publisher publishes timeline events to an event stream backend.
type Publisher interface {
	PublishTimeline(ctx context.Context, event *TimelineAppendedEvent) error
	Close() error
}
