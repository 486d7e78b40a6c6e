package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/paygenio/paygen/internal/api/model"
	"github.com/paygenio/paygen/internal/domain"
)

// RegisterEndpoint upserts the webhook endpoint for a fulfiller. Re-registering
// replaces the previous URL and secret.
func (s *Storage) RegisterEndpoint(ctx context.Context, fulfiller, url, secret string) error {
	query := `
		INSERT INTO webhook_endpoints (fulfiller, url, secret, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (fulfiller) DO UPDATE
		SET url = EXCLUDED.url,
		    secret = EXCLUDED.secret,
		    updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, strings.ToLower(fulfiller), url, secret)
	if err != nil {
		return fmt.Errorf("failed to register webhook endpoint: %w", err)
	}

	return nil
}

// GetEndpointByFulfiller returns the registered endpoint for a fulfiller.
func (s *Storage) GetEndpointByFulfiller(ctx context.Context, fulfiller string) (*model.WebhookEndpoint, error) {
	var endpoint model.WebhookEndpoint
	query := `
		SELECT id, fulfiller, url, secret, created_at, updated_at
		FROM webhook_endpoints
		WHERE fulfiller = $1
	`

	err := s.db.GetContext(ctx, &endpoint, query, strings.ToLower(fulfiller))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("failed to get webhook endpoint: %w", err)
	}

	return &endpoint, nil
}
