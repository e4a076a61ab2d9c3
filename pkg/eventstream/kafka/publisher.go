// Package kafka publishes timeline events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"

	"github.com/mindlinkco/mindlink/pkg/eventstream"
)

// Publisher publishes timeline events to Kafka. Messages are keyed by topic
// id so one topic's events stay ordered within a partition.
type Publisher struct {
	writer *segmentio.Writer
}

// NewPublisher creates a Kafka-backed publisher for the given brokers and
// stream topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &segmentio.Writer{
			Addr:     segmentio.TCP(brokers...),
			Topic:    topic,
			Balancer: &segmentio.LeastBytes{},
		},
	}
}

// PublishTimeline serializes the event and writes it to the stream.
func (p *Publisher) PublishTimeline(ctx context.Context, event *eventstream.TimelineAppendedEvent) error {
	if event == nil {
		return eventstream.ErrNilTimelineEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.TopicID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
