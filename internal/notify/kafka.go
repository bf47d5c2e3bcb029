package notify

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka publishes decision events so requestors can be notified downstream.
type Kafka struct {
	w *kafka.Writer
}

// NewKafka returns Nop when no brokers are configured. The writer is
// asynchronous; delivery failures are logged from the completion callback.
func NewKafka(brokers []string, topic string, log *zap.Logger) Notifier {
	if len(brokers) == 0 {
		return Nop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("Failed to publish decision events",
					zap.String("topic", topic),
					zap.Int("count", len(messages)),
					zap.Error(err))
			}
		},
	}
	return &Kafka{w: w}
}

func (k *Kafka) Notify(ctx context.Context, e Event) error {
	msg, err := encodeMessage(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, msg)
}

func (k *Kafka) Close() error { return k.w.Close() }

// encodeMessage keys by request id so every event for a request lands on one partition.
func encodeMessage(e Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.RequestID),
		Value: b,
		Time:  e.DecidedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}
