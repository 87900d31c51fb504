package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/consultation-booking/internal/queue"
)

// AMQPNotifier publishes status-change events to a durable RabbitMQ queue.
// Each publish dials its own connection.
type AMQPNotifier struct {
	URL   string
	Queue string
}

// NewAMQPNotifier returns a publisher for url and queue.
func NewAMQPNotifier(url, queueName string) *AMQPNotifier {
	return &AMQPNotifier{URL: url, Queue: queueName}
}

// NotifyStatusChange publishes ev as a persistent JSON message.
func (n *AMQPNotifier) NotifyStatusChange(ctx context.Context, ev queue.StatusChangedEvent) error {
	conn, err := amqp.DialConfig(n.URL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		n.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.EventID,
		Timestamp:    ev.OccurredAt,
		Type:         "consultation.status_changed",
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		n.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}
