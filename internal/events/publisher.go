package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/shared/rabbitmq"
)

// Publisher pushes webhook events onto the notifier queue. Delivery to the
// remote endpoint happens in the notifier service, decoupled from the
// payer-facing request by the message boundary.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish enqueues one webhook event as a persistent message.
func (p *Publisher) Publish(ctx context.Context, event *domain.WebhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish webhook event: %w", err)
	}

	p.logger.Debug("Webhook event published",
		slog.String("event", event.Event),
		slog.String("job_id", event.JobID),
	)

	return nil
}
