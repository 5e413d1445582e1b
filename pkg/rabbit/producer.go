package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Producer publishes JSON-encoded events to a topic exchange.
type Producer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewProducer dials the broker, opens a channel, and declares the document
// topology on it.
func NewProducer(url, exchange string) (*Producer, error) {
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
	return &Producer{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   slog.Default().With("component", "rabbit-producer", "exchange", exchange),
	}, nil
}

// Publish serialises a single payload and writes it to the exchange with the
// given routing key. Messages are marked persistent; the broker owns
// durability from here on.
func (p *Producer) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("failed to publish message",
			"routing_key", routingKey,
			"error", err,
		)
		return fmt.Errorf("publishing to %s/%s: %w", p.exchange, routingKey, err)
	}
	p.logger.Debug("message published",
		"routing_key", routingKey,
		"body_size", len(body),
	)
	return nil
}

// IsClosed reports whether the underlying connection has been closed, either
// explicitly or by a broker-side failure.
func (p *Producer) IsClosed() bool {
	return p.conn.IsClosed()
}

// Close closes the channel and the underlying connection.
func (p *Producer) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
