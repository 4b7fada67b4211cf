package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Storage answers the worker's questions about stored repair jobs
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ImageReferenced reports whether any repair job still lists url among its images
func (s *Storage) ImageReferenced(ctx context.Context, url string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM repair_jobs
			WHERE images @> jsonb_build_array($1::text)
		)
	`

	var referenced bool
	if err := s.db.GetContext(ctx, &referenced, query, url); err != nil {
		return false, fmt.Errorf("failed to check image reference: %w", err)
	}

	s.logger.Debug("Checked image reference",
		slog.String("url", url),
		slog.Bool("referenced", referenced),
	)

	return referenced, nil
}
