package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/internal/notifier/storage"
	"github.com/paygenio/paygen/shared/postgresql"
	"github.com/paygenio/paygen/shared/rabbitmq"
)

// Config holds notifier worker configuration
type Config struct {
	Logger        *slog.Logger
	DBClient      *postgresql.Client
	RabbitClient  *rabbitmq.Client
	Concurrency   int
	PrefetchCount int
	Deliverer     *DelivererConfig
}

// Worker consumes webhook events from RabbitMQ and drives delivery through a
// pool of goroutines. Delivery failures never touch job state.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	deliverer     *Deliverer
	workerID      string
	concurrency   int
	prefetchCount int
	eventsChan    chan *eventMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// eventMessage pairs a decoded event with its AMQP delivery tag.
type eventMessage struct {
	Event       *domain.WebhookEvent
	DeliveryTag uint64
}

// NewWorker creates a new notifier worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	store := storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger)

	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		deliverer:     NewDeliverer(store, cfg.Deliverer, cfg.Logger),
		workerID:      fmt.Sprintf("notifier-%s", uuid.New().String()[:8]),
		concurrency:   concurrency,
		prefetchCount: prefetch,
		eventsChan:    make(chan *eventMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and delivering events. It blocks until ctx is
// canceled or the consumer fails.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting notifier worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping notifier worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Notifier worker stopped")
}
