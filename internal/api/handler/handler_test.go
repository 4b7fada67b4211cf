package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/api/auth"
	"github.com/cuongbtq/repair-tracker/internal/api/events"
	"github.com/cuongbtq/repair-tracker/internal/api/model"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/cuongbtq/repair-tracker/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]model.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.byID[user.ID] = *user
	return nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type fakeJobs struct {
	mu     sync.Mutex
	nextID int64
	rows   []model.RepairJob
	err    error
}

func (f *fakeJobs) ListJobs(_ context.Context, userID int64) ([]model.RepairJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.RepairJob
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeJobs) CreateJob(_ context.Context, job *model.RepairJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	job.ID = f.nextID
	f.rows = append(f.rows, *job)
	return nil
}

func (f *fakeJobs) UpdateJob(_ context.Context, userID, jobID int64, patch domain.JobPatch) (*model.RepairJob, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID != jobID || row.UserID != userID {
			continue
		}
		before := row.ToDomain()
		after := patch.Apply(before)
		row.FromDomain(after)
		f.rows[i] = row
		return &row, domain.ReleasedImages(before.Images, after.Images), nil
	}
	return nil, nil, domain.ErrJobNotFound
}

func (f *fakeJobs) DeleteJob(_ context.Context, userID, jobID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == jobID && row.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return row.Images, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

type fakeFiles struct {
	saved []string
	err   error
}

func (f *fakeFiles) Save(filename string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.saved = append(f.saved, filename)
	return "/uploads/id_" + filename, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ImagesReleasedEvent
}

func (p *fakePublisher) PublishJSON(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, v.(domain.ImagesReleasedEvent))
	return nil
}

type testEnv struct {
	users     *fakeUsers
	jobs      *fakeJobs
	files     *fakeFiles
	publisher *fakePublisher
	deps      *Dependencies
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		users:     newFakeUsers(),
		jobs:      &fakeJobs{},
		files:     &fakeFiles{},
		publisher: &fakePublisher{},
	}
	log := logger.NewDiscard().Logger
	env.deps = &Dependencies{
		Logger:         log,
		Users:          env.users,
		Jobs:           env.jobs,
		Files:          env.files,
		Tokens:         auth.NewTokens("test-secret", time.Hour),
		Events:         events.NewNotifier(env.publisher, log),
		MaxUploadBytes: 1 << 20,
	}
	return env
}

// engine mounts the handlers without the auth middleware; every request
// acts as userID.
func (e *testEnv) engine(userID int64) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, userID)
		c.Next()
	})

	authHandler := NewAuthHandler(e.deps)
	jobHandler := NewJobHandler(e.deps)
	uploadHandler := NewUploadHandler(e.deps)

	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)
	r.GET("/auth/me", authHandler.Me)
	r.GET("/repair-jobs", jobHandler.ListJobs)
	r.POST("/repair-jobs", jobHandler.CreateJob)
	r.PUT("/repair-jobs/:id", jobHandler.UpdateJob)
	r.DELETE("/repair-jobs/:id", jobHandler.DeleteJob)
	r.POST("/upload", uploadHandler.UploadImages)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv()
	r := env.engine(0)

	w := doJSON(t, r, http.MethodPost, "/auth/register", domain.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp domain.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotContains(t, w.Body.String(), "password")

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{
			name:    "duplicate username",
			body:    domain.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"},
			wantMsg: "Username already exists",
		},
		{
			name:    "duplicate email",
			body:    domain.RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "secret1"},
			wantMsg: "Email already exists",
		},
		{
			name:    "missing fields",
			body:    map[string]string{"username": "carol"},
			wantMsg: "Missing required fields",
		},
		{
			name:    "malformed json",
			body:    "{",
			wantMsg: "Missing required fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantMsg, errorOf(t, w))
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv()
	r := env.engine(0)

	w := doJSON(t, r, http.MethodPost, "/auth/register", domain.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "valid credentials",
			body:       domain.LoginRequest{Username: "alice", Password: "secret1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       domain.LoginRequest{Username: "alice", Password: "nope"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid credentials",
		},
		{
			name:       "unknown user",
			body:       domain.LoginRequest{Username: "mallory", Password: "secret1"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid credentials",
		},
		{
			name:       "missing password",
			body:       map[string]string{"username": "alice"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Missing username or password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/login", tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, errorOf(t, w))
				return
			}

			var resp domain.AuthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			id, err := env.deps.Tokens.Verify(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, resp.User.ID, id)
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	env := newTestEnv()
	user := model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, env.users.CreateUser(context.Background(), &user))

	w := doJSON(t, env.engine(user.ID), http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)

	w = doJSON(t, env.engine(999), http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", errorOf(t, w))
}

func validDraft() map[string]any {
	return map[string]any{
		"customer_name":     "Ann",
		"device_type":       "Phone",
		"device_model":      "X1",
		"issue_description": "Cracked screen",
	}
}

func TestJobHandler_CreateJob(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]any)
		wantStatus int
		check      func(t *testing.T, job domain.RepairJob)
	}{
		{
			name:       "defaults status and priority",
			mutate:     func(map[string]any) {},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, job domain.RepairJob) {
				assert.Equal(t, domain.StatusPending, job.Status)
				assert.Equal(t, domain.PriorityMedium, job.Priority)
				assert.Empty(t, job.Images)
				assert.NotNil(t, job.Images)
			},
		},
		{
			name: "keeps explicit values",
			mutate: func(m map[string]any) {
				m["status"] = "in_progress"
				m["priority"] = "high"
				m["estimated_cost"] = 120.5
				m["images"] = []string{"/uploads/a.png"}
			},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, job domain.RepairJob) {
				assert.Equal(t, domain.StatusInProgress, job.Status)
				assert.Equal(t, domain.PriorityHigh, job.Priority)
				require.NotNil(t, job.EstimatedCost)
				assert.InDelta(t, 120.5, *job.EstimatedCost, 0.001)
				assert.Equal(t, []string{"/uploads/a.png"}, job.Images)
			},
		},
		{
			name:       "missing customer name",
			mutate:     func(m map[string]any) { delete(m, "customer_name") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown status",
			mutate:     func(m map[string]any) { m["status"] = "archived" },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative cost",
			mutate:     func(m map[string]any) { m["actual_cost"] = -1 },
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			body := validDraft()
			tt.mutate(body)

			w := doJSON(t, env.engine(7), http.MethodPost, "/repair-jobs", body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check == nil {
				assert.NotEmpty(t, errorOf(t, w))
				return
			}

			var job domain.RepairJob
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
			assert.NotZero(t, job.ID)
			tt.check(t, job)
		})
	}
}

func TestJobHandler_ListJobs_ScopedToCaller(t *testing.T) {
	env := newTestEnv()

	for _, userID := range []int64{1, 2, 1} {
		w := doJSON(t, env.engine(userID), http.MethodPost, "/repair-jobs", validDraft())
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, env.engine(1), http.MethodGet, "/repair-jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []domain.RepairJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(3), jobs[0].ID)
	assert.Equal(t, int64(1), jobs[1].ID)

	w = doJSON(t, env.engine(3), http.MethodGet, "/repair-jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	env.jobs.err = errors.New("db down")
	w = doJSON(t, env.engine(1), http.MethodGet, "/repair-jobs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestJobHandler_UpdateJob(t *testing.T) {
	env := newTestEnv()
	body := validDraft()
	body["images"] = []string{"/uploads/a.png", "/uploads/b.png"}
	w := doJSON(t, env.engine(1), http.MethodPost, "/repair-jobs", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, env.engine(1), http.MethodPut, "/repair-jobs/1", map[string]any{
		"status": "completed",
		"images": []string{"/uploads/b.png"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var job domain.RepairJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, "Ann", job.CustomerName)
	assert.Equal(t, []string{"/uploads/b.png"}, job.Images)

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, []string{"/uploads/a.png"}, env.publisher.events[0].Images)
	assert.Equal(t, int64(1), env.publisher.events[0].JobID)

	tests := []struct {
		name       string
		userID     int64
		path       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "other user's job",
			userID:     2,
			path:       "/repair-jobs/1",
			body:       map[string]any{"status": "cancelled"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Job not found",
		},
		{
			name:       "bad id",
			userID:     1,
			path:       "/repair-jobs/abc",
			body:       map[string]any{},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid job id",
		},
		{
			name:       "invalid priority",
			userID:     1,
			path:       "/repair-jobs/1",
			body:       map[string]any{"priority": "urgent"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, env.engine(tt.userID), http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, errorOf(t, w))
			}
		})
	}
}

func TestJobHandler_DeleteJob(t *testing.T) {
	env := newTestEnv()
	body := validDraft()
	body["images"] = []string{"/uploads/a.png"}
	w := doJSON(t, env.engine(1), http.MethodPost, "/repair-jobs", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, env.engine(2), http.MethodDelete, "/repair-jobs/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, env.engine(1), http.MethodDelete, "/repair-jobs/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Job deleted successfully"}`, w.Body.String())
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, domain.EventImagesReleased, env.publisher.events[0].Event)

	w = doJSON(t, env.engine(1), http.MethodDelete, "/repair-jobs/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("data-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHandler_UploadImages(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		files      []string
		maxBytes   int64
		wantStatus int
		wantURLs   []string
	}{
		{
			name:       "preserves order",
			field:      "images",
			files:      []string{"b.png", "a.png"},
			wantStatus: http.StatusOK,
			wantURLs:   []string{"/uploads/id_b.png", "/uploads/id_a.png"},
		},
		{
			name:       "wrong field name",
			field:      "photo",
			files:      []string{"a.png"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no files",
			field:      "images",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "body over limit",
			field:      "images",
			files:      []string{"a.png"},
			maxBytes:   16,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			if tt.maxBytes > 0 {
				env.deps.MaxUploadBytes = tt.maxBytes
			}

			body, contentType := multipartBody(t, tt.field, tt.files...)
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			env.engine(1).ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantURLs == nil {
				return
			}

			var resp domain.UploadResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantURLs, resp.URLs)
		})
	}
}
