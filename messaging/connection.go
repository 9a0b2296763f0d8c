package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/yeremiapane/restaurant-momo/utils"
)

const maxDialAttempts = 5

// Connection wraps a RabbitMQ connection and the channel events go out on.
type Connection struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	url      string
	exchange string
}

// Dial connects and declares the events exchange, retrying with a growing
// wait between attempts.
func Dial(url, exchange string) (*Connection, error) {
	c := &Connection{url: url, exchange: exchange}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return c, nil
}

func (c *Connection) connect() error {
	var err error
	for i := 0; i < maxDialAttempts; i++ {
		if err = c.dialOnce(); err == nil {
			return nil
		}

		if i < maxDialAttempts-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			utils.ErrorLogger.Warnf("RabbitMQ connection failed, retrying in %v: %v", wait, err)
			time.Sleep(wait)
		}
	}
	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxDialAttempts, err)
}

func (c *Connection) dialOnce() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}
	c.conn = conn
	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return err
	}
	if err = c.setupTopology(); err != nil {
		c.close()
		return err
	}
	return nil
}

// setupTopology declares the topic exchange. Consumers bind their own queues
// with keys such as "order.*" or "payment.successful".
func (c *Connection) setupTopology() error {
	err := c.channel.ExchangeDeclare(
		c.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", c.exchange, err)
	}
	return nil
}

// Publish sends one message to the events exchange.
func (c *Connection) Publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error {
	if c.channel == nil {
		return amqp091.ErrClosed
	}
	return c.channel.PublishWithContext(
		ctx,
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
}

func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect makes a single dial attempt. Callers own the retry schedule.
func (c *Connection) Reconnect() error {
	c.close()
	return c.dialOnce()
}
