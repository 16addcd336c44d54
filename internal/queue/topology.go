// Package queue holds the RabbitMQ topology shared by the submission publisher and the grading consumer.
package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "pyshala.direct"
	ExchangeType = "direct"
	RoutingKey   = "grade"
	QueueName    = "grading_tasks"

	DeadLetterExchange = "pyshala.dlx"
	DeadLetterQueue    = "grading_tasks.dlq"
)

// QueueArgs are the arguments of the grading queue. Both sides must declare it identically.
func QueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-type":           "quorum",
		"x-dead-letter-exchange": DeadLetterExchange,
	}
}

// Declare creates the exchanges, the grading queue and its dead letter queue. It is idempotent.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, QueueArgs()); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
