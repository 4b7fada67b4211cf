package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/repair-tracker/internal/domain"
	workerdomain "github.com/cuongbtq/repair-tracker/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// taskMessage pairs a decoded task with the delivery to acknowledge
type taskMessage struct {
	task     workerdomain.CleanupTask
	delivery amqp.Delivery
}

func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.source.Consume(w.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.consumerTag),
	)

	return deliveries, nil
}

// decodeTask parses and validates an images_released message body
func decodeTask(body []byte) (workerdomain.CleanupTask, error) {
	var event domain.ImagesReleasedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return workerdomain.CleanupTask{}, fmt.Errorf("%w: %v", workerdomain.ErrInvalidPayload, err)
	}

	if event.Event != domain.EventImagesReleased {
		return workerdomain.CleanupTask{}, fmt.Errorf("%w: %q", workerdomain.ErrUnknownEvent, event.Event)
	}

	if event.JobID <= 0 {
		return workerdomain.CleanupTask{}, fmt.Errorf("%w: missing job_id", workerdomain.ErrInvalidPayload)
	}

	return workerdomain.CleanupTask{
		JobID:  event.JobID,
		UserID: event.UserID,
		Images: event.Images,
	}, nil
}

// startMessageDispatcher decodes deliveries and hands them to the pool. It
// reports true when the delivery channel was closed by the broker.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return false

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return true
			}

			task, err := decodeTask(delivery.Body)
			if err != nil {
				w.logger.Error("Rejected malformed message",
					slog.String("body", string(delivery.Body)),
					slog.Any("error", err),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			select {
			case w.tasksChan <- &taskMessage{task: task, delivery: delivery}:
				w.logger.Debug("Task dispatched to worker pool",
					slog.Int64("job_id", task.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching task")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return false
			}
		}
	}
}
