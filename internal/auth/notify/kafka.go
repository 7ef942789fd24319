package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the sink needs, so tests can swap in
// a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alerts to a Kafka topic, keyed by source IP so
// repeated alerts for one address land in order on the same partition.
type KafkaSink struct {
	writer Writer
}

func NewKafkaSink(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

// NewKafkaWriter builds a kafka.Writer for the given brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (s *KafkaSink) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.IP),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
