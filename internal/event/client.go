// Package event carries journal mutations over AMQP to the archive worker.
// The dashboard publishes, the worker consumes. Losing the broker degrades the
// archive only, never the journal itself.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"worklog/internal/core"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 60 * time.Second
	publishTimeout = 5 * time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	// circuit breaker
	failureCount  int64
	state         int32
	lastFailureMu sync.Mutex
	lastFailure   time.Time
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setupTopology(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	return nil
}

func setupTopology(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key matches the queue name on a direct exchange.
	err = channel.QueueBind(queueName, queueName, exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishSlotUpdate publishes a slot mutation to the update queue.
func (c *Client) PublishSlotUpdate(ctx context.Context, dateKey string, slot core.SlotLabel, text string) error {
	msg := NewSlotUpdateMessage(dateKey, slot, text)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeSlotUpdate, msg.ID, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published slot update",
		"message_id", msg.ID,
		"date_key", dateKey,
		"slot", slot,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishHolidayUpdate publishes a holiday flag mutation to the update queue.
func (c *Client) PublishHolidayUpdate(ctx context.Context, dateKey string, flag bool) error {
	msg := NewHolidayUpdateMessage(dateKey, flag)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeHolidayUpdate, msg.ID, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published holiday update",
		"message_id", msg.ID,
		"date_key", dateKey,
		"is_holiday", flag,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, msgType, msgID string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing to publish")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		c.recordFailure()
		return fmt.Errorf("publish message: no channel")
	}

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         msgType,
			MessageId:    msgID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			if rerr := c.reconnect(ctx); rerr == nil {
				return c.publish(ctx, msgType, msgID, body)
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeUpdates delivers messages to the matching handler until ctx is done.
// A handler error nacks with requeue; an undecodable message is dropped.
func (c *Client) ConsumeUpdates(
	ctx context.Context,
	onSlot func(*SlotUpdateMessage) error,
	onHoliday func(*HolidayUpdateMessage) error,
) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("start consuming: no channel")
	}

	msgs, err := channel.Consume(
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

	slog.InfoContext(ctx, "Started consuming work log updates", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, onSlot, onHoliday)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onSlot func(*SlotUpdateMessage) error,
	onHoliday func(*HolidayUpdateMessage) error,
) {
	switch delivery.Type {
	case TypeSlotUpdate:
		msg, err := SlotUpdateMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal slot update", "error", err)
			delivery.Nack(false, false) // reject and don't requeue
			return
		}
		if err := onSlot(msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle slot update",
				"error", err,
				"message_id", msg.ID,
				"date_key", msg.DateKey,
				"slot", msg.Slot)
			delivery.Nack(false, true) // reject and requeue
			return
		}
		delivery.Ack(false)
		slog.InfoContext(ctx, "Processed slot update",
			"message_id", msg.ID,
			"date_key", msg.DateKey,
			"slot", msg.Slot)

	case TypeHolidayUpdate:
		msg, err := HolidayUpdateMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal holiday update", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onHoliday(msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle holiday update",
				"error", err,
				"message_id", msg.ID,
				"date_key", msg.DateKey)
			delivery.Nack(false, true)
			return
		}
		delivery.Ack(false)
		slog.InfoContext(ctx, "Processed holiday update",
			"message_id", msg.ID,
			"date_key", msg.DateKey,
			"is_holiday", msg.IsHoliday)

	default:
		slog.WarnContext(ctx, "Dropping message with unknown type", "type", delivery.Type)
		delivery.Nack(false, false)
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		if err := c.connect(); err != nil {
			slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt, "error", err)
			c.recordFailure()
			if c.isCircuitOpen() {
				return fmt.Errorf("reconnect: circuit breaker is open")
			}
			continue
		}

		slog.InfoContext(ctx, "AMQP reconnected", "attempt", attempt)
		c.recordSuccess()
		return nil
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.lastFailureMu.Lock()
	last := c.lastFailure
	c.lastFailureMu.Unlock()

	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	count := atomic.AddInt64(&c.failureCount, 1)
	c.lastFailureMu.Lock()
	c.lastFailure = time.Now()
	c.lastFailureMu.Unlock()

	if count >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	if attempt >= 5 {
		return maxDelay
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
