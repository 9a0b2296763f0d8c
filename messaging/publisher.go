package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
)

const (
	publishTimeout   = 5 * time.Second
	reconnectBackoff = 30 * time.Second
	defaultQueueSize = 256
)

// Event is the JSON body of every published message.
type Event struct {
	Type       string      `json:"type"`
	RoutingKey string      `json:"-"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// OrderEvent is routed as order.<status>.
func OrderEvent(order models.Order, at time.Time) Event {
	return Event{
		Type:       "order_update",
		RoutingKey: "order." + order.Status,
		OccurredAt: at,
		Data:       order,
	}
}

// PaymentEvent is routed as payment.<status>.
func PaymentEvent(txn models.PaymentTransaction, at time.Time) Event {
	return Event{
		Type:       "payment_update",
		RoutingKey: "payment." + txn.Status,
		OccurredAt: at,
		Data:       txn,
	}
}

func PaymentSuccessEvent(order models.Order, txn models.PaymentTransaction, at time.Time) Event {
	return Event{
		Type:       "payment_success",
		RoutingKey: "order.paid",
		OccurredAt: at,
		Data: map[string]interface{}{
			"order":       order,
			"transaction": txn,
		},
	}
}

// Broker is the connection a Publisher sends through.
type Broker interface {
	Publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error
	IsClosed() bool
	Reconnect() error
	Close() error
}

// Publisher sends order and payment events to the RabbitMQ topic exchange.
// Broadcast calls only enqueue; a single worker publishes and reconnects.
// Events that do not fit in the queue, or arrive while the broker is down,
// are logged and dropped.
type Publisher struct {
	broker  Broker
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped atomic.Int64
	now     func() time.Time

	// owned by the worker
	retryAt time.Time
}

func NewPublisher(broker Broker, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Publisher{
		broker:  broker,
		events:  make(chan Event, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
	go p.run()
	return p
}

func (p *Publisher) BroadcastOrderUpdate(order models.Order) {
	p.enqueue(OrderEvent(order, p.now()))
}

func (p *Publisher) BroadcastPaymentUpdate(txn models.PaymentTransaction) {
	p.enqueue(PaymentEvent(txn, p.now()))
}

func (p *Publisher) BroadcastPaymentSuccess(order models.Order, txn models.PaymentTransaction) {
	p.enqueue(PaymentSuccessEvent(order, txn, p.now()))
}

// Dropped reports how many events were discarded without being published.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) enqueue(event Event) {
	select {
	case <-p.done:
		p.drop(event, "publisher closed")
		return
	default:
	}

	select {
	case p.events <- event:
	default:
		p.drop(event, "queue full")
	}
}

func (p *Publisher) drop(event Event, reason string) {
	p.dropped.Add(1)
	utils.ErrorLogger.WithFields(logrus.Fields{
		"event":       event.Type,
		"routing_key": event.RoutingKey,
	}).Warnf("Dropped event: %s", reason)
}

func (p *Publisher) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.done:
			return
		case event := <-p.events:
			p.send(event)
		}
	}
}

func (p *Publisher) send(event Event) {
	if p.broker.IsClosed() {
		if p.now().Before(p.retryAt) {
			p.drop(event, "broker unavailable")
			return
		}
		if err := p.broker.Reconnect(); err != nil {
			p.retryAt = p.now().Add(reconnectBackoff)
			utils.ErrorLogger.Errorf("RabbitMQ reconnect failed, next attempt in %v: %v", reconnectBackoff, err)
			p.drop(event, "broker unavailable")
			return
		}
		utils.InfoLogger.Info("Reconnected to RabbitMQ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, event); err != nil {
		p.dropped.Add(1)
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":       event.Type,
			"routing_key": event.RoutingKey,
		}).Errorf("Failed to publish event: %v", err)
	}
}

// Publish sends one event synchronously on the current connection.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.broker.Publish(ctx, event.RoutingKey, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"routing_key":  event.RoutingKey,
		"message_size": len(body),
	}).Debug("Published event")
	return nil
}

// Close stops the worker and closes the broker connection. Queued events
// that were not yet sent are dropped.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		<-p.stopped
		err = p.broker.Close()
	})
	return err
}
