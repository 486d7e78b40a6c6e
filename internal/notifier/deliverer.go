package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/internal/notifier/storage"
)

// DelivererConfig holds delivery retry policy
type DelivererConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

// DeliveryStore is the storage surface the deliverer needs.
type DeliveryStore interface {
	GetEndpointByFulfiller(ctx context.Context, fulfiller string) (*storage.Endpoint, error)
	CreateDelivery(ctx context.Context, jobPublicID, event, endpointURL string) (int64, error)
	RecordAttempt(ctx context.Context, deliveryID int64, statusCode int, attemptErr string) error
	FinishDelivery(ctx context.Context, deliveryID int64, state string) error
}

// Deliverer pushes one signed event to a registered endpoint with bounded
// retries. A 4xx response is a permanent rejection; 5xx and network failures
// are retried with exponential backoff until attempts run out.
type Deliverer struct {
	store          DeliveryStore
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewDeliverer creates a new deliverer
func NewDeliverer(store DeliveryStore, cfg *DelivererConfig, logger *slog.Logger) *Deliverer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 1 * time.Second
	}
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}

	return &Deliverer{
		store:          store,
		httpClient:     &http.Client{},
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// deliveryPayload is what the remote endpoint receives. It carries the job's
// public id and target state so the receiver can deduplicate repeats.
type deliveryPayload struct {
	Event      string          `json:"event"`
	JobID      string          `json:"job_id"`
	ServiceKey string          `json:"service_key"`
	Input      json.RawMessage `json:"input"`
	Price      string          `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Deliver runs the full delivery policy for one event. A fulfiller with no
// registered endpoint is not an error: the event is simply dropped.
func (d *Deliverer) Deliver(ctx context.Context, event *domain.WebhookEvent) error {
	endpoint, err := d.store.GetEndpointByFulfiller(ctx, event.Fulfiller)
	if err != nil {
		if errors.Is(err, domain.ErrEndpointNotFound) {
			d.logger.Debug("No webhook endpoint registered, dropping event",
				slog.String("job_id", event.JobID),
				slog.String("fulfiller", event.Fulfiller),
			)
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("endpoint lookup failed: %w", err))
	}

	body, err := json.Marshal(deliveryPayload{
		Event:      event.Event,
		JobID:      event.JobID,
		ServiceKey: event.ServiceKey,
		Input:      event.Input,
		Price:      event.Price,
		Timestamp:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery payload: %w", err)
	}

	deliveryID, err := d.store.CreateDelivery(ctx, event.JobID, event.Event, endpoint.URL)
	if err != nil {
		return domain.NewRetryableError(err)
	}

	signature := sign(endpoint.Secret, body)

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			// 1s, 2s, 4s... between attempts.
			delay := d.initialBackoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		statusCode, attemptErr := d.attempt(ctx, endpoint.URL, event, body, signature)

		errMsg := ""
		if attemptErr != nil {
			errMsg = attemptErr.Error()
		}
		if recErr := d.store.RecordAttempt(ctx, deliveryID, statusCode, errMsg); recErr != nil {
			d.logger.Error("Failed to record delivery attempt",
				slog.Int64("delivery_id", deliveryID),
				slog.String("error", recErr.Error()),
			)
		}

		switch {
		case attemptErr == nil:
			d.logger.Info("Webhook delivered",
				slog.String("job_id", event.JobID),
				slog.String("event", event.Event),
				slog.Int("attempt", attempt),
			)
			if finErr := d.store.FinishDelivery(ctx, deliveryID, storage.DeliveryStateDelivered); finErr != nil {
				d.logger.Error("Failed to finish delivery", slog.String("error", finErr.Error()))
			}
			return nil

		case statusCode >= 400 && statusCode < 500:
			// The endpoint will not accept this payload. Retrying is pointless.
			d.logger.Warn("Webhook rejected by endpoint",
				slog.String("job_id", event.JobID),
				slog.Int("status", statusCode),
			)
			if finErr := d.store.FinishDelivery(ctx, deliveryID, storage.DeliveryStateRejected); finErr != nil {
				d.logger.Error("Failed to finish delivery", slog.String("error", finErr.Error()))
			}
			return fmt.Errorf("%w: status %d", domain.ErrDeliveryRejected, statusCode)

		default:
			d.logger.Warn("Webhook delivery attempt failed",
				slog.String("job_id", event.JobID),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.maxAttempts),
				slog.Int("status", statusCode),
				slog.String("error", errMsg),
			)
		}
	}

	if finErr := d.store.FinishDelivery(ctx, deliveryID, storage.DeliveryStateFailed); finErr != nil {
		d.logger.Error("Failed to finish delivery", slog.String("error", finErr.Error()))
	}
	return fmt.Errorf("%w: %d attempts to %s", domain.ErrDeliveryExhausted, d.maxAttempts, endpoint.URL)
}

// attempt performs a single signed POST. statusCode is zero when the request
// never got a response.
func (d *Deliverer) attempt(ctx context.Context, url string, event *domain.WebhookEvent, body []byte, signature string) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Paygen-Event", event.Event)
	req.Header.Set("X-Paygen-Signature", signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
}

// sign computes the hex HMAC-SHA256 of the payload under the endpoint secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
