// Package auth keeps the authenticated user for a cookie-based session.
//
// The backend tracks the session with a cookie stored in the REST client's
// jar. Session only mirrors who is logged in and tells listeners when that
// changes, so rooms and connections can be torn down on logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bidflow/auction-client/internal/model"
)

// ErrNotLoggedIn is returned by operations that need a user.
var ErrNotLoggedIn = errors.New("not logged in")

// Backend is the subset of the REST client a Session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (*model.User, error)
}

// Credentials holds a login email and password.
type Credentials struct {
	Email    string
	Password string
}

// LoadCredentials validates and returns credentials.
func LoadCredentials(email, password string) (*Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("email %q is not an address", email)
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	return &Credentials{Email: email, Password: password}, nil
}

// ChangeFunc is called with the new user, or nil after logout.
type ChangeFunc func(user *model.User)

// Session tracks the current user.
type Session struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.RWMutex
	user      *model.User
	listeners []ChangeFunc
}

// NewSession creates a session with no user.
func NewSession(backend Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		backend: backend,
		logger:  logger.With("component", "session"),
	}
}

// OnChange registers a listener for login and logout.
func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Login authenticates and stores the user.
func (s *Session) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	user, err := s.backend.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("logged in", "user_uuid", user.UserUUID, "nickname", user.Nickname)
	s.setUser(user)
	return user, nil
}

// Logout ends the session. The user is kept if the backend call fails.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		return err
	}
	s.logger.Info("logged out")
	s.setUser(nil)
	return nil
}

// Refresh re-reads the user bound to the session cookie. Any failure clears
// the user.
func (s *Session) Refresh(ctx context.Context) error {
	user, err := s.backend.CheckAuth(ctx)
	if err != nil {
		s.logger.Debug("auth check failed", "error", err)
		s.setUser(nil)
		return err
	}
	s.setUser(user)
	return nil
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserUUID returns the current user's UUID or ErrNotLoggedIn.
func (s *Session) UserUUID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return "", ErrNotLoggedIn
	}
	return s.user.UserUUID, nil
}

// IsAuthenticated reports whether a user is set.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// setUser stores user and notifies listeners when the identity changed.
func (s *Session) setUser(user *model.User) {
	s.mu.Lock()
	changed := !sameUser(s.user, user)
	s.user = user
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		var u *model.User
		if user != nil {
			cp := *user
			u = &cp
		}
		fn(u)
	}
}

func sameUser(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserUUID == b.UserUUID
}
