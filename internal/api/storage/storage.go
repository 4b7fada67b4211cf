package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/repair-tracker/internal/api/model"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/cuongbtq/repair-tracker/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	id, user_id, customer_name, device_type, device_model,
	issue_description, status, priority, estimated_cost,
	actual_cost, notes, images, created_at, updated_at
`

type Storage struct {
	pg *postgresql.Client
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		pg: pg,
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.db.QueryRowxContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if constraint, ok := postgresql.UniqueViolation(err); ok {
			if constraint == "users_email_key" {
				return domain.ErrEmailTaken
			}
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`

	if err := s.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListJobs returns every job owned by userID, newest first
func (s *Storage) ListJobs(ctx context.Context, userID int64) ([]model.RepairJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM repair_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	jobs := []model.RepairJob{}
	if err := s.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CreateJob inserts job and fills in the generated id and timestamps
func (s *Storage) CreateJob(ctx context.Context, job *model.RepairJob) error {
	query := `
		INSERT INTO repair_jobs (
			user_id, customer_name, device_type, device_model,
			issue_description, status, priority, estimated_cost,
			actual_cost, notes, images
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowxContext(
		ctx,
		query,
		job.UserID,
		job.CustomerName,
		job.DeviceType,
		job.DeviceModel,
		job.IssueDescription,
		job.Status,
		job.Priority,
		job.EstimatedCost,
		job.ActualCost,
		job.Notes,
		job.Images,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// UpdateJob applies patch to the job under a row lock and returns the
// stored result plus the image URLs the update dropped.
func (s *Storage) UpdateJob(ctx context.Context, userID, jobID int64, patch domain.JobPatch) (*model.RepairJob, []string, error) {
	tx, err := s.pg.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var current model.RepairJob
	query := `SELECT ` + jobColumns + `
		FROM repair_jobs
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &current, query, jobID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrJobNotFound
		}
		return nil, nil, fmt.Errorf("failed to load job for update: %w", err)
	}

	before := current.ToDomain()
	after := patch.Apply(before)

	updated := current
	updated.FromDomain(after)

	update := `
		UPDATE repair_jobs SET
			customer_name = $1, device_type = $2, device_model = $3,
			issue_description = $4, status = $5, priority = $6,
			estimated_cost = $7, actual_cost = $8, notes = $9,
			images = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at
	`
	err = tx.QueryRowxContext(
		ctx,
		update,
		updated.CustomerName,
		updated.DeviceType,
		updated.DeviceModel,
		updated.IssueDescription,
		updated.Status,
		updated.Priority,
		updated.EstimatedCost,
		updated.ActualCost,
		updated.Notes,
		updated.Images,
		updated.ID,
	).Scan(&updated.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit job update: %w", err)
	}

	return &updated, domain.ReleasedImages(before.Images, after.Images), nil
}

// DeleteJob removes the job and returns the images it referenced
func (s *Storage) DeleteJob(ctx context.Context, userID, jobID int64) ([]string, error) {
	query := `
		DELETE FROM repair_jobs
		WHERE id = $1 AND user_id = $2
		RETURNING images
	`

	var images model.StringList
	if err := s.db.QueryRowxContext(ctx, query, jobID, userID).Scan(&images); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to delete job: %w", err)
	}

	return []string(images), nil
}
