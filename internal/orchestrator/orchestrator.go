package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/internal/payment"
)

// JobStore is the subset of the storage layer the orchestrator drives.
type JobStore interface {
	GetJobByPublicID(ctx context.Context, publicID string) (*domain.Job, error)
	MarkPaid(ctx context.Context, publicID, txHash string) error
	MarkInProgress(ctx context.Context, publicID string) error
	MarkCompleted(ctx context.Context, publicID string, output json.RawMessage) error
	MarkFailed(ctx context.Context, publicID, reason, detail string) error
}

// Verifier is the payment verification oracle.
type Verifier interface {
	Verify(ctx context.Context, txHash, expectedRecipient string, expectedAmount domain.Amount) (*payment.Verdict, error)
}

// Dispatcher routes a paid job to its generation provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) (json.RawMessage, error)
}

// EventPublisher enqueues webhook events. Publishing is best-effort: a broker
// hiccup is logged, never surfaced to the payer.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.WebhookEvent) error
}

// Config holds orchestrator settings
type Config struct {
	RecipientAddress string
}

// Orchestrator sequences the payment-gated pipeline: verify the claim, win
// the paid transition, dispatch, finalize, notify. MarkPaid is the single
// serialization point per job; everything after it runs at most once.
type Orchestrator struct {
	store     JobStore
	verifier  Verifier
	fulfill   Dispatcher
	events    EventPublisher
	recipient string
	logger    *slog.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(store JobStore, verifier Verifier, dispatcher Dispatcher, events EventPublisher, cfg *Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		verifier:  verifier,
		fulfill:   dispatcher,
		events:    events,
		recipient: cfg.RecipientAddress,
		logger:    logger,
	}
}

// ConfirmPayment runs the full pipeline for one payment claim and returns the
// job in its resulting state. Error cases:
//   - *domain.VerificationError: claim rejected, job stays pending
//   - domain.ErrConflict / domain.ErrTxHashUsed: job already advanced or the
//     transaction already paid another job
//   - domain.ErrJobNotFound: unknown public id
//
// Resubmitting the hash already recorded on the job is idempotent and returns
// the job's current state instead of a conflict.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, publicID, txHash string) (*domain.Job, error) {
	job, err := o.store.GetJobByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if job.State != domain.JobStatePending {
		if job.TxHash == txHash {
			o.logger.Info("Duplicate payment confirmation, returning current state",
				slog.String("job_id", publicID),
				slog.String("state", job.State),
			)
			return job, nil
		}
		return nil, domain.ErrConflict
	}

	verdict, err := o.verifier.Verify(ctx, txHash, o.recipient, job.Price)
	if err != nil {
		return nil, fmt.Errorf("verification unavailable: %w", err)
	}

	if !verdict.Accepted {
		o.logger.Info("Payment claim rejected",
			slog.String("job_id", publicID),
			slog.String("tx_hash", txHash),
			slog.String("reason", verdict.Reason),
		)
		return nil, &domain.VerificationError{Reason: verdict.Reason, Detail: verdict.Detail}
	}

	if err := o.store.MarkPaid(ctx, publicID, txHash); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race to a concurrent confirmation. If it recorded the
			// same hash, report success rather than a conflict.
			current, getErr := o.store.GetJobByPublicID(ctx, publicID)
			if getErr == nil && current.TxHash == txHash {
				return current, nil
			}
		}
		return nil, err
	}

	// The payment is committed: from here the job must reach a terminal
	// state even if the payer hangs up. Detach from the request context so
	// a client disconnect cannot strand the job in_progress; the dispatcher
	// still bounds the provider call with its own deadline.
	ctx = context.WithoutCancel(ctx)

	job.State = domain.JobStatePaid
	job.TxHash = txHash
	o.publish(ctx, domain.EventJobPaid, job)

	o.logger.Info("Job paid",
		slog.String("job_id", publicID),
		slog.String("tx_hash", txHash),
		slog.String("payer", verdict.Payer),
	)

	return o.execute(ctx, job)
}

// execute runs the dispatch leg for a job that just won the paid transition.
func (o *Orchestrator) execute(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if err := o.store.MarkInProgress(ctx, job.PublicID); err != nil {
		return nil, err
	}
	job.State = domain.JobStateInProgress

	output, err := o.fulfill.Dispatch(ctx, job)
	if err != nil {
		reason, detail := classifyDispatchError(err)
		o.logger.Error("Dispatch failed",
			slog.String("job_id", job.PublicID),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)

		if markErr := o.store.MarkFailed(ctx, job.PublicID, reason, detail); markErr != nil {
			o.logger.Error("Failed to mark job failed",
				slog.String("job_id", job.PublicID),
				slog.String("error", markErr.Error()),
			)
		}
		job.State = domain.JobStateFailed
		o.publish(ctx, domain.EventJobFailed, job)
		return o.store.GetJobByPublicID(ctx, job.PublicID)
	}

	if err := o.store.MarkCompleted(ctx, job.PublicID, output); err != nil {
		return nil, err
	}
	job.State = domain.JobStateCompleted
	job.Output = output
	o.publish(ctx, domain.EventJobCompleted, job)

	o.logger.Info("Job completed",
		slog.String("job_id", job.PublicID),
		slog.String("service_key", job.ServiceKey),
	)

	return job, nil
}

// publish enqueues a webhook event, logging instead of failing on error.
func (o *Orchestrator) publish(ctx context.Context, event string, job *domain.Job) {
	if err := o.events.Publish(ctx, domain.NewWebhookEvent(event, job)); err != nil {
		o.logger.Error("Failed to publish webhook event",
			slog.String("job_id", job.PublicID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// classifyDispatchError maps a dispatch failure onto the stored reason code.
func classifyDispatchError(err error) (reason, detail string) {
	switch {
	case errors.Is(err, domain.ErrProviderTimeout):
		return "timeout", err.Error()
	case errors.Is(err, domain.ErrMalformedOutput):
		return "malformed_output", err.Error()
	default:
		return "provider_error", err.Error()
	}
}
