package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// retryHeader counts how many times a message has been republished
const retryHeader = "x-retry-count"

// retryCount reads retryHeader; a missing or foreign value counts as zero
func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	}
	return 0
}

// fail settles a delivery whose task returned err. Transient failures are
// republished with an incremented retry count after a backoff delay until
// maxRetries is reached; everything else is dropped.
func (w *Worker) fail(ctx context.Context, workerName string, msg *taskMessage, err error) {
	log := w.logger.With(
		slog.String("worker_name", workerName),
		slog.Int64("job_id", msg.task.JobID),
	)

	if !shouldRequeue(err) {
		log.Error("Cleanup task failed", slog.Bool("requeue", false), slog.Any("error", err))
		w.nack(log, msg.delivery, false)
		return
	}

	if w.retrier == nil {
		requeue := !msg.delivery.Redelivered
		if !requeue {
			err = fmt.Errorf("%w: redelivered task failed again: %v", domain.ErrMaxRetriesExceeded, err)
		}
		log.Error("Cleanup task failed", slog.Bool("requeue", requeue), slog.Any("error", err))
		w.nack(log, msg.delivery, requeue)
		return
	}

	retries := retryCount(msg.delivery.Headers)
	if retries >= w.maxRetries {
		log.Error("Cleanup task failed, giving up",
			slog.Int("retries", retries),
			slog.Any("error", fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)),
		)
		w.nack(log, msg.delivery, false)
		return
	}

	delay := w.retryDelay << retries
	log.Warn("Cleanup task failed, retrying",
		slog.Int("retry", retries+1),
		slog.Int("max_retries", w.maxRetries),
		slog.Duration("retry_after", delay),
		slog.Any("error", err),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		w.nack(log, msg.delivery, true)
		return
	}

	headers := amqp.Table{}
	for k, v := range msg.delivery.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retries + 1)

	if pubErr := w.retrier.Republish(ctx, msg.delivery.Body, msg.delivery.ContentType, headers); pubErr != nil {
		log.Error("Failed to republish task, requeueing", slog.Any("error", pubErr))
		w.nack(log, msg.delivery, true)
		return
	}

	if ackErr := msg.delivery.Ack(false); ackErr != nil {
		log.Error("Failed to ACK republished message", slog.Any("error", ackErr))
	}
}

func (w *Worker) nack(log *slog.Logger, d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		log.Error("Failed to NACK message", slog.Any("error", err))
	}
}
