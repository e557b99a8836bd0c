package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes suggestions as JSON keyed by panel id.
type KafkaNotifier struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewKafkaNotifier builds a synchronous writer for topic.
func NewKafkaNotifier(brokers []string, topic string, timeout time.Duration, logger zerolog.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: timeout,
	}
	return newKafkaNotifier(writer, topic, timeout, logger)
}

func newKafkaNotifier(w messageWriter, topic string, timeout time.Duration, logger zerolog.Logger) *KafkaNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaNotifier{
		writer:  w,
		topic:   topic,
		timeout: timeout,
		logger:  logger.With().Str("component", "alert_kafka").Str("topic", topic).Logger(),
	}
}

// Notify implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, suggestion Suggestion) error {
	value, err := json.Marshal(suggestion)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(suggestion.PanelID),
		Value: value,
		Time:  suggestion.DetectedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("maintenance.suggestion")},
		},
	}
	if err := n.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("publish suggestion: %w", err)
	}

	n.logger.Info().
		Str("panel_id", suggestion.PanelID).
		Time("event_at", suggestion.Event.Timestamp).
		Msg("suggestion published (kafka)")
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ Notifier = (*KafkaNotifier)(nil)
