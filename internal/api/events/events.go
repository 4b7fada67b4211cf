// Package events tells the worker service about stored images that saved
// jobs no longer reference.
package events

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// Publisher is satisfied by *rabbitmq.Client
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// Notifier publishes job events. A nil Notifier or nil publisher is a no-op.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// ImagesReleased publishes an images_released event. Publish failures are
// logged and swallowed: the job change is already committed.
func (n *Notifier) ImagesReleased(ctx context.Context, userID, jobID int64, images []string) {
	if n == nil || n.publisher == nil || len(images) == 0 {
		return
	}

	event := domain.ImagesReleasedEvent{
		Event:  domain.EventImagesReleased,
		JobID:  jobID,
		UserID: userID,
		Images: images,
	}

	if err := n.publisher.PublishJSON(ctx, event); err != nil {
		n.logger.Error("Failed to publish images_released event",
			slog.Int64("job_id", jobID),
			slog.Int("images", len(images)),
			slog.Any("error", err),
		)
		return
	}

	n.logger.Info("Published images_released event",
		slog.Int64("job_id", jobID),
		slog.Int("images", len(images)),
	)
}
