// Package rabbit provides AMQP producer and consumer clients backed by
// rabbitmq/amqp091-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback running on a
// bounded worker pool.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// MessageHandler is a callback invoked for each delivered message. A nil
// return acknowledges the message; a non-nil return rejects it to the
// dead-letter queue without requeueing.
type MessageHandler func(ctx context.Context, routingKey string, body []byte) error

// Consumer reads messages from a durable queue and dispatches them to a
// MessageHandler across a fixed number of workers.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	workers int
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer dials the broker, declares the document topology, and sets the
// prefetch window so that at most prefetch messages are in flight.
func NewConsumer(url, queue string, prefetch, workers int, handler MessageHandler) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		conn:    conn,
		ch:      ch,
		queue:   queue,
		workers: workers,
		logger:  slog.Default().With("component", "rabbit-consumer", "queue", queue),
		handler: handler,
	}, nil
}

// Start enters the consume loop, dispatching deliveries to the worker pool
// until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming from %s: %w", c.queue, err)
	}
	c.logger.Info("consumer started", "workers", c.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						return nil
					}
					c.dispatch(ctx, d)
				}
			}
		})
	}
	err = g.Wait()
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return err
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	c.logger.Debug("message received",
		"routing_key", d.RoutingKey,
		"body_size", len(d.Body),
	)
	if err := c.handler(ctx, d.RoutingKey, d.Body); err != nil {
		c.logger.Error("failed to process message, dead-lettering",
			"routing_key", d.RoutingKey,
			"error", err,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack message", "error", ackErr)
	}
}

// Close closes the channel and the underlying connection.
func (c *Consumer) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// DecodeJSON is a generic helper that unmarshals a message body into T.
func DecodeJSON[T any](body []byte) (T, error) {
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("decoding message body: %w", err)
	}
	return result, nil
}
