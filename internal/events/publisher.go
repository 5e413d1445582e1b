package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/swen/dms/pkg/metrics"
	"github.com/swen/dms/pkg/rabbit"
)

// MessagingError is the uniform error returned for any transport-level
// publish failure. It isolates broker-specific error types from callers and
// carries the original cause.
type MessagingError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

func (e *MessagingError) Error() string {
	return fmt.Sprintf("publishing event to %s/%s: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *MessagingError) Unwrap() error {
	return e.Err
}

// producer is the transport the publisher writes through.
type producer interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Publisher emits pipeline events to the docs exchange. It performs no
// retrying or buffering; callers that need delivery guarantees own that
// policy.
type Publisher struct {
	producer producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPublisher creates a Publisher over the given producer. metrics may be
// nil in tests.
func NewPublisher(p producer, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: p,
		metrics:  m,
		logger:   slog.Default().With("component", "event-publisher"),
	}
}

// PublishDocumentCreated emits a DocumentCreated event.
func (p *Publisher) PublishDocumentCreated(ctx context.Context, event DocumentCreated) error {
	if err := p.publish(ctx, rabbit.RoutingDocCreated, event); err != nil {
		p.logger.Error("failed to publish DocumentCreated",
			"document_id", event.DocumentID,
			"title", event.Title,
			"error", err,
		)
		return err
	}
	p.logger.Info("published DocumentCreated",
		"document_id", event.DocumentID,
		"title", event.Title,
	)
	return nil
}

// PublishDocumentUpdated emits a DocumentUpdated event.
func (p *Publisher) PublishDocumentUpdated(ctx context.Context, event DocumentUpdated) error {
	if err := p.publish(ctx, rabbit.RoutingDocUpdated, event); err != nil {
		p.logger.Error("failed to publish DocumentUpdated",
			"document_id", event.DocumentID,
			"title_before", event.TitleBefore,
			"title_after", event.TitleAfter,
			"error", err,
		)
		return err
	}
	p.logger.Info("published DocumentUpdated",
		"document_id", event.DocumentID,
		"title_before", event.TitleBefore,
		"title_after", event.TitleAfter,
	)
	return nil
}

// PublishTextExtracted emits a TextExtracted event.
func (p *Publisher) PublishTextExtracted(ctx context.Context, event TextExtracted) error {
	if err := p.publish(ctx, rabbit.RoutingOCRCompleted, event); err != nil {
		p.logger.Error("failed to publish TextExtracted",
			"document_id", event.DocumentID,
			"error", err,
		)
		return err
	}
	p.logger.Info("published TextExtracted", "document_id", event.DocumentID)
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any) error {
	err := p.producer.Publish(ctx, routingKey, payload)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.EventsPublishedTotal.WithLabelValues(routingKey, status).Inc()
	}
	if err != nil {
		return &MessagingError{
			Exchange:   rabbit.ExchangeDocs,
			RoutingKey: routingKey,
			Err:        err,
		}
	}
	return nil
}
