// Package session tracks who is signed in to the repair tracker. A Session
// is created at sign-in and ended at sign-out; every authorized operation
// reads its token from the Session it was given.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/client/api"
	"github.com/cuongbtq/repair-tracker/internal/domain"
)

var (
	// ErrSignedOut is returned by operations attempted without an active session
	ErrSignedOut = errors.New("not signed in")

	// ErrInvalidCredentials is returned when the backend rejects a login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRegistrationFailed is returned when the backend rejects a registration
	ErrRegistrationFailed = errors.New("registration failed")
)

// Session is one sign-in. It is safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	token string
	user  domain.User
	ended bool
}

// New starts a session for user authorized by token
func New(token string, user domain.User) *Session {
	return &Session{token: token, user: user}
}

// Token returns the bearer token, or ErrSignedOut once the session ended
func (s *Session) Token() (string, error) {
	if s == nil {
		return "", ErrSignedOut
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return "", ErrSignedOut
	}
	return s.token, nil
}

// User returns the signed-in user
func (s *Session) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Active reports whether the session can still authorize requests
func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.ended
}

// End signs the session out. Calling End twice is harmless.
func (s *Session) End() {
	s.mu.Lock()
	s.ended = true
	s.token = ""
	s.mu.Unlock()
}

// Authenticator is satisfied by *api.Client
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (*domain.AuthResponse, error)
	Me(ctx context.Context, token string) (*domain.User, error)
}

// Store persists the current session between runs
type Store interface {
	Load() (*Record, error)
	Save(rec Record) error
	Clear() error
}

// Provider owns the current Session
type Provider struct {
	auth   Authenticator
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *Session
	loading bool
}

// NewProvider creates a signed-out provider. store may be nil, in which
// case sessions last only as long as the process.
func NewProvider(auth Authenticator, store Store, logger *slog.Logger) *Provider {
	return &Provider{
		auth:   auth,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the active session, or nil when signed out
func (p *Provider) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current.Active() {
		return nil
	}
	return p.current
}

// User returns the signed-in user, or nil when signed out
func (p *Provider) User() *domain.User {
	s := p.Current()
	if s == nil {
		return nil
	}
	u := s.User()
	return &u
}

// Loading reports whether a sign-in, registration or restore is in flight
func (p *Provider) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Login signs in and replaces any current session
func (p *Provider) Login(ctx context.Context, username, password string) error {
	p.setLoading(true)
	defer p.setLoading(false)

	resp, err := p.auth.Login(ctx, username, password)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, se.Message)
		}
		return fmt.Errorf("failed to log in: %w", err)
	}

	p.begin(resp)
	p.logger.Info("Signed in", slog.String("username", resp.User.Username))
	return nil
}

// Register creates an account and signs in as it
func (p *Provider) Register(ctx context.Context, username, email, password string) error {
	p.setLoading(true)
	defer p.setLoading(false)

	resp, err := p.auth.Register(ctx, username, email, password)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", ErrRegistrationFailed, se.Message)
		}
		return fmt.Errorf("failed to register: %w", err)
	}

	p.begin(resp)
	p.logger.Info("Registered", slog.String("username", resp.User.Username))
	return nil
}

// Logout ends the current session. Holders of the old Session get
// ErrSignedOut from then on.
func (p *Provider) Logout() error {
	p.mu.Lock()
	old := p.current
	p.current = nil
	p.mu.Unlock()

	if old != nil {
		old.End()
	}

	if p.store != nil {
		if err := p.store.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Restore resumes the saved session after checking it with the backend.
// A token the backend no longer accepts is discarded and leaves the
// provider signed out without error.
func (p *Provider) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}

	p.setLoading(true)
	defer p.setLoading(false)

	rec, err := p.store.Load()
	if err != nil {
		return err
	}
	if rec == nil || rec.Token == "" {
		return nil
	}

	user, err := p.auth.Me(ctx, rec.Token)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusNotFound) {
			p.logger.Info("Saved session rejected, signing out",
				slog.Int("status", se.StatusCode),
			)
			return p.store.Clear()
		}
		return fmt.Errorf("failed to verify saved session: %w", err)
	}

	p.mu.Lock()
	p.current = New(rec.Token, *user)
	p.mu.Unlock()
	return nil
}

func (p *Provider) begin(resp *domain.AuthResponse) {
	s := New(resp.Token, resp.User)

	p.mu.Lock()
	old := p.current
	p.current = s
	p.mu.Unlock()

	if old != nil {
		old.End()
	}

	if p.store == nil {
		return
	}
	if err := p.store.Save(Record{Token: resp.Token, User: resp.User, SavedAt: p.now()}); err != nil {
		p.logger.Warn("Failed to save session", slog.Any("error", err))
	}
}

func (p *Provider) setLoading(v bool) {
	p.mu.Lock()
	p.loading = v
	p.mu.Unlock()
}
