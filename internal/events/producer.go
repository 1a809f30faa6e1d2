package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "order-events"

// Writes are flushed one message at a time and give up after a few
// attempts; callers publish inside request handling.
const (
	publishTimeout    = 3 * time.Second
	writeAttempts     = 3
	writeBatchTimeout = 5 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes order lifecycle events keyed by order id, so all
// events of one order land on the same partition in order.
type KafkaProducer struct {
	writer  messageWriter
	brokers []string
	logger  *zap.Logger
}

func NewKafkaProducer(brokers, topic string, logger *zap.Logger) (*KafkaProducer, error) {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		BatchTimeout:           writeBatchTimeout,
		MaxAttempts:            writeAttempts,
		WriteTimeout:           publishTimeout,
		AllowAutoTopicCreation: true,
	}

	return &KafkaProducer{
		writer:  writer,
		brokers: addrs,
		logger:  logger,
	}, nil
}

func (p *KafkaProducer) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error {
	return p.publish(ctx, TypeOrderCreated, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) PublishLineStatusChanged(ctx context.Context, event LineStatusChangedEvent) error {
	return p.publish(ctx, TypeLineStatusChanged, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) PublishOrderDeleted(ctx context.Context, event OrderDeletedEvent) error {
	return p.publish(ctx, TypeOrderDeleted, event.OrderID, event.EventID, event)
}

func (p *KafkaProducer) publish(ctx context.Context, eventType EventType, orderID, eventID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("ORDER#%s", orderID)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(eventID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("event_id", eventID),
			zap.String("order_id", orderID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Event published",
		zap.String("event_type", string(eventType)),
		zap.String("event_id", eventID),
		zap.String("order_id", orderID))
	return nil
}

// HealthCheck dials the first reachable broker.
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NopProducer discards events. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) PublishOrderCreated(context.Context, OrderCreatedEvent) error { return nil }
func (NopProducer) PublishLineStatusChanged(context.Context, LineStatusChangedEvent) error { return nil }
func (NopProducer) PublishOrderDeleted(context.Context, OrderDeletedEvent) error { return nil }
func (NopProducer) HealthCheck(context.Context) error { return nil }
func (NopProducer) Close() error { return nil }
