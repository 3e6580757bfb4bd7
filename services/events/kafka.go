// Package eventsvc publishes lab events to kafka.
package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaPublisher struct {
	writer MessageWriter
	topic  string
}

var _ lab.EventPublisher = (*kafkaPublisher)(nil)

// NewWriter returns an async writer: WriteMessages never blocks the request path, delivery
// failures are reported to logger.
func NewWriter(conf *core.Config, logger core.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(conf.Kafka.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("publishing lab events: "+err.Error(), err, map[string]interface{}{"count": len(messages)})
			}
		},
	}
}

// NewKafkaPublisher writes every event as a JSON message keyed by submission id, so the events
// of one submission stay ordered on a partition.
func NewKafkaPublisher(writer MessageWriter, topic string) lab.EventPublisher {
	return &kafkaPublisher{writer: writer, topic: topic}
}

func (p *kafkaPublisher) Publish(ctx context.Context, events ...lab.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		value, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "encoding %s event", evt.Type)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(evt.Key()),
			Value: value,
			Time:  evt.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(evt.Type)},
			},
		})
	}
	return errors.Wrap(p.writer.WriteMessages(ctx, msgs...), "publishing lab events")
}
