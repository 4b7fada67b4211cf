package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/repair-tracker/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.consumerTag, workerNum)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.tasksChan:
			if !ok {
				w.logger.Debug("Worker goroutine stopping - tasksChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handle(ctx, workerName, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, workerName string, msg *taskMessage) {
	result, err := w.processTask(ctx, msg.task)
	if err != nil {
		w.fail(ctx, workerName, msg, err)
		return
	}

	if ackErr := msg.delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.Any("error", ackErr),
		)
		return
	}

	w.logger.Info("Cleanup task completed",
		slog.String("worker_name", workerName),
		slog.Int64("job_id", msg.task.JobID),
		slog.Int("removed", len(result.Removed)),
		slog.Int("still_referenced", len(result.Referenced)),
	)
}

// shouldRequeue requeues transient failures only
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) || errors.Is(err, domain.ErrUnknownEvent) {
		return false
	}

	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
