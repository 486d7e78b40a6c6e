package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paygenio/paygen/internal/domain"
)

// Storage handles all database operations for the notifier: endpoint lookup
// and the delivery-attempt audit trail. It never touches job state; a failed
// delivery must not revert a terminal job.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Endpoint is a registered webhook target.
type Endpoint struct {
	ID        int64  `db:"id"`
	Fulfiller string `db:"fulfiller"`
	URL       string `db:"url"`
	Secret    string `db:"secret"`
}

// Delivery states.
const (
	DeliveryStatePending   = "pending"
	DeliveryStateDelivered = "delivered"
	DeliveryStateRejected  = "rejected"
	DeliveryStateFailed    = "failed"
)

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetEndpointByFulfiller returns the registered endpoint for a fulfiller.
func (s *Storage) GetEndpointByFulfiller(ctx context.Context, fulfiller string) (*Endpoint, error) {
	var endpoint Endpoint
	query := `
		SELECT id, fulfiller, url, secret
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

// CreateDelivery opens a delivery record for one event and returns its id.
func (s *Storage) CreateDelivery(ctx context.Context, jobPublicID, event, endpointURL string) (int64, error) {
	query := `
		INSERT INTO webhook_deliveries (job_public_id, event, endpoint_url, state, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query, jobPublicID, event, endpointURL, DeliveryStatePending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create delivery record: %w", err)
	}

	return id, nil
}

// RecordAttempt stores the outcome of one delivery attempt.
func (s *Storage) RecordAttempt(ctx context.Context, deliveryID int64, statusCode int, attemptErr string) error {
	query := `
		UPDATE webhook_deliveries
		SET attempts = attempts + 1,
		    last_status_code = $1,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $3
	`

	_, err := s.db.ExecContext(ctx, query, statusCode, attemptErr, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	return nil
}

// FinishDelivery sets the terminal state of a delivery record.
func (s *Storage) FinishDelivery(ctx context.Context, deliveryID int64, state string) error {
	query := `
		UPDATE webhook_deliveries
		SET state = $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, state, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to finish delivery: %w", err)
	}

	s.logger.Info("Delivery finished",
		slog.Int64("delivery_id", deliveryID),
		slog.String("state", state),
	)

	return nil
}
