package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Sink delivers one status-change event to its destination.
type Sink interface {
	Deliver(ctx context.Context, ev StatusChangedEvent) error
}

// Consumer reads status-change events from a durable queue and hands each
// one to every sink.
type Consumer struct {
	url      string
	queue    string
	sinks    []Sink
	logger   *zap.Logger
	prefetch int
	maxWait  time.Duration
}

// NewConsumer returns a consumer for queueName on the broker at url.
func NewConsumer(url, queueName string, logger *zap.Logger, sinks ...Sink) *Consumer {
	return &Consumer{
		url:      url,
		queue:    queueName,
		sinks:    sinks,
		logger:   logger.Named("consumer"),
		prefetch: 50,
		maxWait:  30 * time.Second,
	}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff whenever the broker or the channel goes away.  It
// always returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.DialConfig(c.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
		if err != nil {
			c.logger.Warn("Broker dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < c.maxWait {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("Set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("Consuming status changes", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.logger.Error("Handle message failed", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false) // no requeue
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one delivery and passes it to every sink.  All
// sinks are attempted; the first failure is returned.
func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev StatusChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ReservationID == 0 || ev.Status == "" {
		return errors.New("event without reservation_id or status")
	}
	var first error
	for _, s := range c.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			c.logger.Warn("Sink delivery failed", zap.String("event_id", ev.EventID), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
