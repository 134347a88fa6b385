package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeOrderStatusChanged = "order.status_changed"
	TypeAmountMismatch     = "order.amount_mismatch"
)

// PaymentEvent is emitted after a reconciliation commits.
type PaymentEvent struct {
	Type               string    `json:"type"`
	Reference          string    `json:"reference"`
	OrderID            string    `json:"order_id"`
	UserID             string    `json:"user_id"`
	CourseID           string    `json:"course_id"`
	PreviousStatus     string    `json:"previous_status"`
	Status             string    `json:"status"`
	TransactionID      string    `json:"transaction_id,omitempty"`
	AmountInCents      int64     `json:"amount_in_cents"`
	Currency           string    `json:"currency"`
	EntitlementCreated bool      `json:"entitlement_created"`
	Source             string    `json:"source"`
	OccurredAt         time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	writeTimeout = 10 * time.Second
	maxAttempts  = 3
)

type kafkaPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaPublisher returns an async publisher. Delivery failures surface in
// the completion log, never on the request path.
func NewKafkaPublisher(brokers []string, topic string, l *zap.Logger) Publisher {
	l.Info("Kafka payment events publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return newKafkaPublisher(newKafkaWriter(brokers, topic, l), topic, l)
}

func newKafkaWriter(brokers []string, topic string, l *zap.Logger) *kafka.Writer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            maxAttempts,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Logger:                 zap.NewStdLog(l.With(zap.String("kafka_component", "producer"))),
		ErrorLogger:            zap.NewStdLog(l.With(zap.String("kafka_component", "producer_errors"))),
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			if err != nil {
				l.Error("Failed to write payment event to Kafka",
					zap.String("topic", topic),
					zap.String("reference", string(msg.Key)),
					zap.Error(err))
				continue
			}
			l.Debug("Payment event written to Kafka", zap.String("topic", topic), zap.String("reference", string(msg.Key)))
		}
	}
	return writer
}

func newKafkaPublisher(w messageWriter, topic string, l *zap.Logger) *kafkaPublisher {
	return &kafkaPublisher{writer: w, topic: topic, writeTimeout: writeTimeout, logger: l}
}

// Publish keys messages by order reference so all events of an order land
// on the same partition in order.
func (p *kafkaPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Error("Failed to publish payment event",
			zap.String("topic", p.topic),
			zap.String("reference", event.Reference),
			zap.Error(err))
		return fmt.Errorf("failed to publish payment event: %w", err)
	}
	p.logger.Debug("Published payment event", zap.String("topic", p.topic), zap.String("reference", event.Reference))
	return nil
}

func (p *kafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka publisher", zap.Error(err))
		return fmt.Errorf("failed to close Kafka publisher: %w", err)
	}
	p.logger.Info("Kafka publisher closed.")
	return nil
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, PaymentEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
