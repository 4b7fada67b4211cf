package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/repair-tracker/internal/api/events"
	"github.com/cuongbtq/repair-tracker/internal/api/model"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// UserIDKey is the gin context key the auth middleware stores the caller under
const UserIDKey = "user_id"

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// JobStore persists repair jobs scoped by owner
type JobStore interface {
	ListJobs(ctx context.Context, userID int64) ([]model.RepairJob, error)
	CreateJob(ctx context.Context, job *model.RepairJob) error
	UpdateJob(ctx context.Context, userID, jobID int64, patch domain.JobPatch) (*model.RepairJob, []string, error)
	DeleteJob(ctx context.Context, userID, jobID int64) ([]string, error)
}

// FileStore saves uploaded images
type FileStore interface {
	Save(filename string, r io.Reader) (string, error)
}

// TokenIssuer signs and verifies bearer tokens
type TokenIssuer interface {
	Issue(userID int64) (string, error)
	Verify(token string) (int64, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Users          UserStore
	Jobs           JobStore
	Files          FileStore
	Tokens         TokenIssuer
	Events         *events.Notifier
	UploadsDir     string
	UploadsPrefix  string
	MaxUploadBytes int64
}

// AuthHandler handles /auth requests
type AuthHandler struct {
	logger *slog.Logger
	users  UserStore
	tokens TokenIssuer
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger: deps.Logger,
		users:  deps.Users,
		tokens: deps.Tokens,
	}
}

// JobHandler handles /repair-jobs requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobStore
	events *events.Notifier
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
		events: deps.Events,
	}
}

// UploadHandler handles POST /upload
type UploadHandler struct {
	logger   *slog.Logger
	files    FileStore
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler instance
func NewUploadHandler(deps *Dependencies) *UploadHandler {
	return &UploadHandler{
		logger:   deps.Logger,
		files:    deps.Files,
		maxBytes: deps.MaxUploadBytes,
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

func jobIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid job id",
		})
		return 0, false
	}
	return id, true
}

// bindErrorMessage turns a binding failure into the message sent to clients
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "Missing required field: " + fe.Field()
	case "oneof":
		return "Invalid value for " + fe.Field() + ": must be one of " + fe.Param()
	case "gte":
		return "Invalid value for " + fe.Field() + ": must not be negative"
	default:
		return "Invalid value for " + fe.Field()
	}
}
