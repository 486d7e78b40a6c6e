package handler

import (
	"context"
	"log/slog"

	"github.com/paygenio/paygen/internal/api/storage"
	"github.com/paygenio/paygen/internal/catalog"
	"github.com/paygenio/paygen/internal/domain"
)

// JobStore is the storage surface the handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByPublicID(ctx context.Context, publicID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error)
	RegisterEndpoint(ctx context.Context, fulfiller, url, secret string) error
}

// PaymentConfirmer runs the payment-gated pipeline for one claim.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, publicID, txHash string) (*domain.Job, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Storage      JobStore
	Orchestrator PaymentConfirmer
	Catalog      *catalog.Catalog
	Environment  string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	storage      JobStore
	orchestrator PaymentConfirmer
	catalog      *catalog.Catalog
	environment  string
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		storage:      deps.Storage,
		orchestrator: deps.Orchestrator,
		catalog:      deps.Catalog,
		environment:  deps.Environment,
	}
}
