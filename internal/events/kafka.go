package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives publish events when no topic is configured.
const DefaultTopic = "sendto.events"

// Writer is the subset of *kafka.Writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig selects the brokers and topic events are produced to.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether at least one broker is configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// KafkaSink produces each event as a JSON message keyed by platform, so
// the events of one platform stay ordered within a partition.
type KafkaSink struct {
	writer Writer
	topic  string
}

// NewKafkaSink returns a sink producing to cfg.Brokers.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logutil.With("brokers", cfg.Brokers).Debug("kafka event sink initialized")
	return NewKafkaSinkWithWriter(writer, cfg.Topic)
}

// NewKafkaSinkWithWriter returns a sink producing through writer.
func NewKafkaSinkWithWriter(writer Writer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{writer: writer, topic: topic}
}

// Dispatch implements publish.EventSink.
func (s *KafkaSink) Dispatch(ctx context.Context, event publish.Event) error {
	env := NewEnvelope(event)
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(env.Platform),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(env.Name)},
			{Key: "event_id", Value: []byte(env.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("produce %s event: %w", env.Name, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
