package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline time.Time
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.deadline, _ = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaProducer_PublishOrderCreated(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: zap.NewNop()}

	event := OrderCreatedEvent{
		EventID:     "evt-1",
		OrderID:     "ord-1",
		BuyerID:     "buyer-1",
		SellerIDs:   []string{"seller-1"},
		TotalAmount: decimal.NewFromInt(100),
		Lines: Summarize([]domain.OrderLine{
			{ID: "line-1", ItemID: "item-1", SellerID: "seller-1", Quantity: 2, Price: decimal.NewFromInt(50)},
		}),
		Timestamp: time.Now(),
	}

	require.NoError(t, p.PublishOrderCreated(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ORDER#ord-1", string(msg.Key))
	assert.Equal(t, string(TypeOrderCreated), header(msg, "event_type"))
	assert.Equal(t, "evt-1", header(msg, "event_id"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ord-1", decoded["order_id"])
	assert.NotContains(t, string(msg.Value), "otp")
}

func TestKafkaProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaProducer{writer: w, logger: zap.NewNop()}

	err := p.PublishOrderDeleted(context.Background(), OrderDeletedEvent{EventID: "e", OrderID: "o"})
	assert.EqualError(t, err, "broker down")
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(" , ", "", zap.NewNop())
	assert.Error(t, err)

	p, err := NewKafkaProducer("localhost:9092, localhost:9093", "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, p.brokers)
	require.NoError(t, p.Close())
}

func TestNewKafkaProducer_FlushesEachMessage(t *testing.T) {
	p, err := NewKafkaProducer("localhost:9092", "", zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.LessOrEqual(t, w.MaxAttempts, 3)
	assert.False(t, w.Async)
}

func TestKafkaProducer_PublishIsBounded(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: zap.NewNop()}

	start := time.Now()
	require.NoError(t, p.PublishLineStatusChanged(context.Background(), LineStatusChangedEvent{EventID: "e", OrderID: "o"}))
	require.False(t, w.deadline.IsZero())
	assert.WithinDuration(t, start.Add(publishTimeout), w.deadline, time.Second)
}
