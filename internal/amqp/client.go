// Package amqp carries budget alerts over RabbitMQ. The publishing side
// implements budget.Notifier and blocks until the worker acknowledges the
// alert on a per-client reply queue.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"pocket/internal/core"
	"pocket/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	ackTimeout     = 30 * time.Second
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	replyQueue   string

	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		pending:      make(map[string]chan struct{}),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// Exclusive auto-delete reply queue for acknowledgments addressed to
	// this client only.
	reply, err := c.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare reply queue: %w", err)
	}
	c.replyQueue = reply.Name

	acks, err := c.channel.Consume(c.replyQueue, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume reply queue: %w", err)
	}
	go c.routeAcks(acks)

	return nil
}

func (c *Client) routeAcks(acks <-chan amqp091.Delivery) {
	for delivery := range acks {
		c.mu.Lock()
		done, ok := c.pending[delivery.CorrelationId]
		if ok {
			delete(c.pending, delivery.CorrelationId)
		}
		c.mu.Unlock()
		if ok {
			close(done)
		}
	}
}

// ShowAlert publishes the alert and blocks until the worker acknowledges it,
// the context is done, or the ack timeout elapses. It satisfies
// budget.Notifier.
func (c *Client) ShowAlert(ctx context.Context, alert core.Alert) error {
	body, err := NewAlertMessage(alert).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	corrID := uuid.NewString()
	done := make(chan struct{})
	c.mu.Lock()
	c.pending[corrID] = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
	}()

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		pubCtx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			CorrelationId: corrID,
			ReplyTo:       c.replyQueue,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	slog.InfoContext(ctx, "Published alert",
		log.FieldAlertKind, string(alert.Kind),
		"correlation_id", corrID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ackTimeout):
		return fmt.Errorf("alert %s not acknowledged within %s", corrID, ackTimeout)
	}
}

// ConsumeAlerts processes alert messages until ctx is done. Each successfully
// handled alert is acknowledged back to the publisher's reply queue.
func (c *Client) ConsumeAlerts(ctx context.Context, handler func(*AlertMessage) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming alerts", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping alert consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := AlertMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal alert", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle alert",
					"error", err,
					log.FieldAlertKind, string(msg.Kind))
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			if err := c.acknowledge(ctx, delivery); err != nil {
				slog.WarnContext(ctx, "Failed to send alert acknowledgment",
					"error", err,
					"correlation_id", delivery.CorrelationId)
			}

			delivery.Ack(false)
			slog.InfoContext(ctx, "Processed alert",
				log.FieldAlertKind, string(msg.Kind),
				"correlation_id", delivery.CorrelationId)
		}
	}
}

func (c *Client) acknowledge(ctx context.Context, delivery amqp091.Delivery) error {
	if delivery.ReplyTo == "" {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return c.channel.PublishWithContext(
		pubCtx,
		"",               // default exchange routes directly to the queue
		delivery.ReplyTo, // routing key
		false,
		false,
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: delivery.CorrelationId,
			Timestamp:     time.Now(),
			Body:          []byte(`{"status":"shown"}`),
		},
	)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
