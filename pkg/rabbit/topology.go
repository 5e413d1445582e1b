package rabbit

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange, queue, and routing-key names for the document pipeline.
const (
	ExchangeDocs = "docs.exchange"
	ExchangeDead = "docs.dead.exchange"

	QueueOCR   = "docs.ocr.queue"
	QueueGenAI = "docs.genai.queue"
	QueueDead  = "docs.dead.queue"

	RoutingDocCreated   = "docs.created"
	RoutingDocUpdated   = "docs.updated"
	RoutingOCRCompleted = "docs.ocr.completed"
)

// DeclareTopology declares the docs topic exchange, the per-stage durable
// queues with their bindings, and the dead-letter exchange that receives
// rejected messages. All declarations are idempotent.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeDocs, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", ExchangeDocs, err)
	}
	if err := ch.ExchangeDeclare(ExchangeDead, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", ExchangeDead, err)
	}
	if _, err := ch.QueueDeclare(QueueDead, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", QueueDead, err)
	}
	if err := ch.QueueBind(QueueDead, "#", ExchangeDead, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", QueueDead, err)
	}

	stageArgs := amqp.Table{"x-dead-letter-exchange": ExchangeDead}
	bindings := []struct {
		queue      string
		routingKey string
	}{
		{QueueOCR, RoutingDocCreated},
		{QueueGenAI, RoutingOCRCompleted},
	}
	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, stageArgs); err != nil {
			return fmt.Errorf("declaring queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, ExchangeDocs, false, nil); err != nil {
			return fmt.Errorf("binding queue %s to %s: %w", b.queue, b.routingKey, err)
		}
	}
	return nil
}
