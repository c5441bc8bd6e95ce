/**
 * @description
 * Reusable RabbitMQ consumer for task queues. Declares the task exchange, a
 * durable queue bound to one routing key, and feeds deliveries to a handler.
 *
 * The handler decides the fate of each message: Ack removes it, Retry nacks
 * with requeue so the broker redelivers it, Drop nacks without requeue for
 * failures a retry cannot fix. Workers crash-stopping before ack leave the
 * message in the queue, which is what gives jobs at-least-once semantics.
 */
package rabbitmq

import (
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome tells the consumer how to acknowledge a processed message.
type Outcome int

const (
	// Ack marks the message as successfully processed.
	Ack Outcome = iota
	// Retry returns the message to the queue for redelivery.
	Retry
	// Drop discards the message; retrying would fail the same way.
	Drop
)

// MessageHandler processes a single task message.
type MessageHandler func(body []byte) Outcome

// Consumer handles the connection and consumption of messages from RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConsumer creates a new RabbitMQ consumer.
func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
	}, nil
}

// Consume starts listening for messages on a specified queue. It blocks until
// the channel is closed.
func (c *Consumer) Consume(queueName, routingKey string, handler MessageHandler) error {
	if err := declareTaskExchange(c.channel); err != nil {
		return err
	}

	q, err := c.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return err
	}

	err = c.channel.QueueBind(
		q.Name,       // queue name
		routingKey,   // routing key
		TaskExchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack (we want manual acknowledgment)
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return err
	}

	for d := range msgs {
		switch handler(d.Body) {
		case Ack:
			d.Ack(false)
		case Retry:
			d.Nack(false, true)
		case Drop:
			log.Printf("dropping message %s from %s: not retryable", d.MessageId, q.Name)
			d.Nack(false, false)
		}
	}
	return nil
}

// Close gracefully closes the channel and connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
