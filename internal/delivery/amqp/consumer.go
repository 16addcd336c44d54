package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/queue"
)

const (
	// Reconnection parameters
	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

// Consumer listens to RabbitMQ and dispatches SubmissionMessages (with ACK callbacks) to a channel.
// Messages are acknowledged by the worker pool once grading has finished.
type Consumer struct {
	url      string
	prefetch int
	conn     *amqplib.Connection
	channel  *amqplib.Channel
	logger   *zap.Logger
	jobs     chan<- *domain.SubmissionMessage

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer. prefetch bounds the number of
// unacknowledged deliveries and normally equals the worker pool size.
func NewConsumer(url string, prefetch int, jobs chan<- *domain.SubmissionMessage, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:      url,
		prefetch: prefetch,
		logger:   logger,
		jobs:     jobs,
		closeCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the AMQP connection and channel and declares the topology.
func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := queue.Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start begins consuming messages. It blocks until the context is cancelled.
// On connection loss it automatically reconnects with exponential backoff.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			// Context was cancelled: clean shutdown.
			return nil
		}

		// Check if we were explicitly closed.
		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))

		// Exponential backoff reconnection loop.
		for attempt := 0; ; attempt++ {
			delay := backoff(attempt)
			c.logger.Info("Reconnect attempt",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Min(
		float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
		float64(maxReconnectDelay),
	))
}

// consume runs one consume session until the delivery channel closes or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		queue.QueueName,
		"",    // auto-generated consumer tag
		false, // auto-ack disabled (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", queue.QueueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg, err := decodeDelivery(delivery.Body, ch, delivery.DeliveryTag)
			if err != nil {
				c.logger.Error("Failed to unmarshal submission",
					zap.Error(err),
					zap.Int("body_size", len(delivery.Body)),
				)
				delivery.Nack(false, false) // reject → DLQ
				continue
			}

			c.logger.Debug("Received submission from queue",
				zap.String("submission_id", msg.Submission.ID.String()),
				zap.String("lesson_id", msg.Submission.LessonID),
			)

			// Dispatch to worker pool. Blocking here is the back-pressure.
			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				// Shutting down, so requeue.
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

// acknowledger is the part of *amqplib.Channel the ack callbacks need.
type acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

func decodeDelivery(body []byte, ch acknowledger, tag uint64) (*domain.SubmissionMessage, error) {
	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, err
	}
	return &domain.SubmissionMessage{
		Submission: &sub,
		Ack: func() error {
			return ch.Ack(tag, false)
		},
		Nack: func(requeue bool) error {
			return ch.Nack(tag, false, requeue)
		},
	}, nil
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
