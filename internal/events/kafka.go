package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cadak-tickets/internal/config"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("cadak-tickets/events")

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes domain events as JSON Kafka messages. Trace context
// travels in the message headers.
type KafkaPublisher struct {
	writer         messageWriter
	orderPaidTopic string
	checkedInTopic string
	logger         zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, cfg, logger)
}

func newKafkaPublisher(writer messageWriter, cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:         writer,
		orderPaidTopic: cfg.OrderPaidTopic,
		checkedInTopic: cfg.TicketCheckedInTopic,
		logger:         logger.With().Str("publisher", "kafka").Logger(),
	}
}

// PublishOrderPaid sends ev keyed by the payment reference, so every event
// for one order lands on the same partition.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, ev OrderPaid) error {
	return p.publish(ctx, p.orderPaidTopic, ev.Reference, ev)
}

// PublishTicketCheckedIn sends ev keyed by ticket id.
func (p *KafkaPublisher) PublishTicketCheckedIn(ctx context.Context, ev TicketCheckedIn) error {
	return p.publish(ctx, p.checkedInTopic, ev.TicketID, ev)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := tracer.Start(ctx, "send "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Str("key", key).Msg("event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
