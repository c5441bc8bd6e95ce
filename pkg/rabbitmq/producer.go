/**
 * @description
 * This package provides the durable task transport for QuotaWatch. Check and
 * notification jobs travel as persistent JSON messages over a topic exchange;
 * workers consume them with manual acknowledgment, giving at-least-once
 * delivery.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The official Go client for RabbitMQ.
 * - github.com/google/uuid: Message ids for published tasks.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskExchange is the durable topic exchange carrying all task messages.
const TaskExchange = "quotawatch.tasks"

// Publisher is the interface implemented by types that can enqueue tasks.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// TaskProducer publishes task messages to the task exchange.
type TaskProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewTaskProducer connects to RabbitMQ and declares the task exchange.
func NewTaskProducer(amqpURL string) (*TaskProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := declareTaskExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &TaskProducer{conn: conn, channel: ch}, nil
}

func declareTaskExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		TaskExchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
}

// Publish sends one persistent task message with the given routing key.
func (p *TaskProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		TaskExchange, // exchange
		routingKey,   // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         jsonBody,
		},
	)
}

// Close closes the RabbitMQ connection and channel.
func (p *TaskProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
