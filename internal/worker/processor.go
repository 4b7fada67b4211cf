package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/cuongbtq/repair-tracker/internal/uploads"
	"github.com/cuongbtq/repair-tracker/internal/worker/domain"
)

// processTask deletes every released image that no job references any more.
// Images are shared by URL, so a copy kept on another job keeps the file.
func (w *Worker) processTask(ctx context.Context, task domain.CleanupTask) (domain.CleanupResult, error) {
	var result domain.CleanupResult

	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
	}

	w.logger.Debug("Processing cleanup task",
		slog.Int64("job_id", task.JobID),
		slog.Int("images", len(task.Images)),
	)

	seen := make(map[string]struct{}, len(task.Images))
	for _, url := range task.Images {
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		if err := ctx.Err(); err != nil {
			return result, domain.NewRetryableError(fmt.Errorf("cleanup interrupted: %w", err))
		}

		referenced, err := w.references.ImageReferenced(ctx, url)
		if err != nil {
			return result, domain.NewRetryableError(err)
		}
		if referenced {
			result.Referenced = append(result.Referenced, url)
			continue
		}

		if err := w.files.Remove(url); err != nil {
			if errors.Is(err, uploads.ErrForeignURL) {
				w.logger.Warn("Skipping image outside upload store",
					slog.Int64("job_id", task.JobID),
					slog.String("url", url),
				)
				result.Skipped = append(result.Skipped, url)
				continue
			}
			// retrying cannot fix file permissions
			if errors.Is(err, fs.ErrPermission) {
				return result, fmt.Errorf("failed to remove %s: %w", url, err)
			}
			return result, domain.NewRetryableError(err)
		}

		result.Removed = append(result.Removed, url)
	}

	return result, nil
}
