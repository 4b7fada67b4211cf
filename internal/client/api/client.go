// Package api is the HTTP client for the repair tracker REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// StatusError is returned for every non-2xx response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// File is one image to upload
type File struct {
	Name   string
	Reader io.Reader
}

// Client talks to the API service. Methods that need authorization take
// the bearer token explicitly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. A zero timeout means none.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the API root requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, username, password string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	body := domain.LoginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its token
func (c *Client) Register(ctx context.Context, username, email, password string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	body := domain.RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the user the token belongs to
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListJobs returns every job of the caller
func (c *Client) ListJobs(ctx context.Context, token string) ([]domain.RepairJob, error) {
	var jobs []domain.RepairJob
	if err := c.doJSON(ctx, http.MethodGet, "/repair-jobs", token, nil, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []domain.RepairJob{}
	}
	return jobs, nil
}

// CreateJob posts a new job and returns the stored record
func (c *Client) CreateJob(ctx context.Context, token string, draft domain.JobDraft) (domain.RepairJob, error) {
	var job domain.RepairJob
	err := c.doJSON(ctx, http.MethodPost, "/repair-jobs", token, draft, &job)
	return job, err
}

// UpdateJob sends patch for job id and returns the stored record
func (c *Client) UpdateJob(ctx context.Context, token string, id int64, patch domain.JobPatch) (domain.RepairJob, error) {
	var job domain.RepairJob
	err := c.doJSON(ctx, http.MethodPut, jobPath(id), token, patch, &job)
	return job, err
}

// DeleteJob deletes job id
func (c *Client) DeleteJob(ctx context.Context, token string, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, jobPath(id), token, nil, nil)
}

// Upload sends every file in one multipart request under the "images"
// field and returns the stored URLs in the order the server reports them.
func (c *Client) Upload(ctx context.Context, token string, files []File) ([]string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", token, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp domain.UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.URLs, nil
}

func jobPath(id int64) string {
	return "/repair-jobs/" + strconv.FormatInt(id, 10)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr domain.ErrorResponse
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
