package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/models"
)

func TestEventRoutingKeys(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	order := models.Order{OrderNumber: "ORD000042", Status: models.OrderStatusPreparing}
	assert.Equal(t, "order.preparing", OrderEvent(order, at).RoutingKey)

	txn := models.PaymentTransaction{TransactionID: "TX1ABC", Status: models.PaymentStatusFailed}
	assert.Equal(t, "payment.failed", PaymentEvent(txn, at).RoutingKey)

	assert.Equal(t, "order.paid", PaymentSuccessEvent(order, txn, at).RoutingKey)
}

func TestEventBody(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	txn := models.PaymentTransaction{
		TransactionID: "TX1ABC",
		Provider:      models.ProviderMTN,
		Amount:        decimal.NewFromInt(16000),
		Status:        models.PaymentStatusSuccessful,
	}

	body, err := json.Marshal(PaymentEvent(txn, at))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "payment_update", decoded["type"])
	assert.Equal(t, "2024-06-01T12:00:00Z", decoded["occurred_at"])
	assert.NotContains(t, decoded, "RoutingKey")

	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "TX1ABC", data["transaction_id"])
}

type fakeBroker struct {
	mu           sync.Mutex
	closed       bool
	reconnectErr error
	gate         chan struct{}
	reconnects   int
	closeCalls   int
	published    []string
}

func (b *fakeBroker) Publish(_ context.Context, routingKey string, msg amqp091.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, routingKey)
	return nil
}

func (b *fakeBroker) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBroker) Reconnect() error {
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reconnects++
	if b.reconnectErr != nil {
		return b.reconnectErr
	}
	b.closed = false
	return nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return nil
}

func (b *fakeBroker) snapshot() ([]string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...), b.reconnects
}

func TestPublisher_PublishesQueuedEvents(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, 8)

	p.BroadcastOrderUpdate(models.Order{OrderNumber: "ORD000001", Status: models.OrderStatusPreparing})
	p.BroadcastPaymentUpdate(models.PaymentTransaction{TransactionID: "TX1", Status: models.PaymentStatusPending})

	assert.Eventually(t, func() bool {
		published, _ := broker.snapshot()
		return len(published) == 2
	}, time.Second, 5*time.Millisecond)
	published, _ := broker.snapshot()
	assert.Equal(t, []string{"order.preparing", "payment.pending"}, published)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, broker.closeCalls)

	p.BroadcastOrderUpdate(models.Order{Status: models.OrderStatusReady})
	assert.EqualValues(t, 1, p.Dropped())
}

func TestPublisher_DoesNotBlockWhileBrokerDown(t *testing.T) {
	broker := &fakeBroker{
		closed:       true,
		reconnectErr: errors.New("connection refused"),
		gate:         make(chan struct{}),
	}
	p := NewPublisher(broker, 4)
	defer p.Close()

	start := time.Now()
	for i := 0; i < 10; i++ {
		p.BroadcastOrderUpdate(models.Order{OrderNumber: "ORD000001", Status: models.OrderStatusPaid})
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.GreaterOrEqual(t, p.Dropped(), int64(5))

	// the single reconnect attempt fails, then the backoff drops the rest
	close(broker.gate)
	assert.Eventually(t, func() bool { return p.Dropped() == 10 }, time.Second, 5*time.Millisecond)

	published, reconnects := broker.snapshot()
	assert.Empty(t, published)
	assert.Equal(t, 1, reconnects)
}

func TestPublisher_ReconnectsBeforePublishing(t *testing.T) {
	broker := &fakeBroker{closed: true}
	p := NewPublisher(broker, 0)
	defer p.Close()

	p.BroadcastPaymentSuccess(models.Order{Status: models.OrderStatusPaid}, models.PaymentTransaction{TransactionID: "TX1"})

	assert.Eventually(t, func() bool {
		published, _ := broker.snapshot()
		return len(published) == 1
	}, time.Second, 5*time.Millisecond)
	published, reconnects := broker.snapshot()
	assert.Equal(t, []string{"order.paid"}, published)
	assert.Equal(t, 1, reconnects)
	assert.Zero(t, p.Dropped())
}
