package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/repair-tracker/internal/api/model"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/gin-gonic/gin"
)

// ListJobs handles GET /repair-jobs
// Returns every job owned by the caller, newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID := currentUserID(c)

	rows, err := h.jobs.ListJobs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list jobs",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	jobs := make([]domain.RepairJob, len(rows))
	for i, row := range rows {
		jobs[i] = row.ToDomain()
	}

	c.JSON(http.StatusOK, jobs)
}

// CreateJob handles POST /repair-jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID := currentUserID(c)

	var draft domain.JobDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.logger.Debug("Invalid job payload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": bindErrorMessage(err),
		})
		return
	}
	draft = draft.WithDefaults()

	row := model.RepairJob{UserID: userID}
	row.FromDomain(domain.RepairJob{
		CustomerName:     draft.CustomerName,
		DeviceType:       draft.DeviceType,
		DeviceModel:      draft.DeviceModel,
		IssueDescription: draft.IssueDescription,
		Status:           draft.Status,
		Priority:         draft.Priority,
		EstimatedCost:    draft.EstimatedCost,
		ActualCost:       draft.ActualCost,
		Notes:            draft.Notes,
		Images:           draft.Images,
	})

	if err := h.jobs.CreateJob(c.Request.Context(), &row); err != nil {
		h.logger.Error("Failed to create job",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Repair job created",
		slog.Int64("job_id", row.ID),
		slog.Int64("user_id", userID),
	)

	c.JSON(http.StatusCreated, row.ToDomain())
}

// UpdateJob handles PUT /repair-jobs/:id
// Fields missing from the body keep their stored value
func (h *JobHandler) UpdateJob(c *gin.Context) {
	userID := currentUserID(c)
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var patch domain.JobPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": bindErrorMessage(err),
		})
		return
	}

	row, released, err := h.jobs.UpdateJob(c.Request.Context(), userID, jobID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to update job",
			slog.Int64("job_id", jobID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update job",
		})
		return
	}

	h.events.ImagesReleased(c.Request.Context(), userID, jobID, released)

	h.logger.Info("Repair job updated",
		slog.Int64("job_id", jobID),
		slog.Int("released_images", len(released)),
	)

	c.JSON(http.StatusOK, row.ToDomain())
}

// DeleteJob handles DELETE /repair-jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	userID := currentUserID(c)
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	images, err := h.jobs.DeleteJob(c.Request.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to delete job",
			slog.Int64("job_id", jobID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	h.events.ImagesReleased(c.Request.Context(), userID, jobID, images)

	h.logger.Info("Repair job deleted", slog.Int64("job_id", jobID))

	c.JSON(http.StatusOK, gin.H{
		"message": "Job deleted successfully",
	})
}
