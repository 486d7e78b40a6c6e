package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paygenio/paygen/internal/domain"
)

// spawnPool spawns N delivery goroutines based on configured concurrency.
func (w *Worker) spawnPool(ctx context.Context) {
	w.logger.Info("Spawning delivery pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.deliveryLoop(ctx, i)
	}
}

// deliveryLoop is the main processing loop for each delivery goroutine.
func (w *Worker) deliveryLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Delivery goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Delivery goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Delivery goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.eventsChan:
			if !ok {
				w.logger.Info("Delivery goroutine stopping - eventsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			err := w.deliverer.Deliver(ctx, msg.Event)

			if err != nil {
				requeue := w.shouldRequeue(err)

				w.logger.Error("Delivery failed",
					slog.String("worker_name", workerName),
					slog.String("job_id", msg.Event.JobID),
					slog.Bool("requeue", requeue),
					slog.String("error", err.Error()),
				)

				if nackErr := w.rabbitClient.Nack(msg.DeliveryTag, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := w.rabbitClient.Ack(msg.DeliveryTag); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeue determines whether a failed delivery message goes back on the
// queue. Rejected and exhausted deliveries already ran their full policy;
// requeueing them would double-deliver. Only transient infrastructure
// failures (endpoint lookup, delivery bookkeeping) are retried via requeue.
func (w *Worker) shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrDeliveryRejected) {
		return false
	}

	if errors.Is(err, domain.ErrDeliveryExhausted) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
