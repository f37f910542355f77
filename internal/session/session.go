// Package session holds the auth token and the current user's identity and
// drives the connection and navigation side effects of login and logout.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/router"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
)

const keyUser = "user"

type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (string, error)
	Me(ctx context.Context) (model.UserProfile, error)
}

type Connector interface {
	Connect(ctx context.Context) error
	Disconnect()
}

type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

type Session struct {
	auth   Authenticator
	conn   Connector
	nav    Navigator
	kv     store.KV
	logger *zap.Logger

	mu        sync.RWMutex
	token     string
	user      *model.UserProfile
	listeners map[int]func(bool)
	nextID    int
}

func New(auth Authenticator, conn Connector, nav Navigator, kv store.KV, logger *zap.Logger) *Session {
	return &Session{
		auth:      auth,
		conn:      conn,
		nav:       nav,
		kv:        kv,
		logger:    logger,
		listeners: make(map[int]func(bool)),
	}
}

// Restore loads the persisted token and identity.
func (s *Session) Restore(ctx context.Context) error {
	token, _, err := store.ReadValue[string](ctx, s.kv, store.KeyToken)
	if err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	user, ok, err := store.ReadValue[model.UserProfile](ctx, s.kv, keyUser)
	if err != nil {
		s.logger.Warn("stored identity unreadable", zap.Error(err))
		ok = false
	}

	s.mu.Lock()
	s.user = nil
	if ok && token != "" {
		s.user = &user
	}
	s.mu.Unlock()

	s.setToken(token)
	return nil
}

// Reload re-reads the token, picking up logins and logouts made by another
// process. A stored token equal to the one held is this process's own write
// and is ignored.
func (s *Session) Reload(ctx context.Context) error {
	token, _, err := store.ReadValue[string](ctx, s.kv, store.KeyToken)
	if err != nil {
		return fmt.Errorf("reload token: %w", err)
	}
	if token == s.Token() {
		return nil
	}
	var user *model.UserProfile
	if token != "" {
		if u, ok, err := store.ReadValue[model.UserProfile](ctx, s.kv, keyUser); err == nil && ok {
			user = &u
		}
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	s.setToken(token)
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) User() (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.UserProfile{}, false
	}
	return *s.user, true
}

func (s *Session) CurrentUserID() (int64, bool) {
	u, ok := s.User()
	if !ok || u.ID == 0 {
		return 0, false
	}
	return u.ID, true
}

// Subscribe calls fn with the new authentication state on every token change.
func (s *Session) Subscribe(fn func(authenticated bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Login exchanges credentials for a token. API errors are returned unchanged
// and leave the session untouched.
func (s *Session) Login(ctx context.Context, creds model.Credentials) error {
	token, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.logger.Error("login failed", zap.String("email", creds.Email), zap.Error(err))
		return err
	}

	// Me authenticates with the in-memory token.
	s.setToken(token)

	user, err := s.auth.Me(ctx)
	if err != nil {
		s.logger.Warn("fetch profile failed", zap.Error(err))
	} else {
		s.mu.Lock()
		s.user = &user
		s.mu.Unlock()
		// identity first: whoever sees the new token must find its user
		if err := store.SaveValue(ctx, s.kv, keyUser, user); err != nil {
			s.logger.Warn("persist identity failed", zap.Error(err))
		}
	}

	if err := store.SaveValue(ctx, s.kv, store.KeyToken, token); err != nil {
		s.logger.Error("persist token failed", zap.Error(err))
		if derr := s.kv.Delete(ctx, keyUser); derr != nil {
			s.logger.Warn("delete identity failed", zap.Error(derr))
		}
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()
		s.setToken("")
		return fmt.Errorf("persist token: %w", err)
	}

	if err := s.conn.Connect(ctx); err != nil {
		s.logger.Warn("push channel unavailable after login", zap.Error(err))
	}

	if err := s.nav.Navigate(ctx, router.PathTareas); err != nil {
		s.logger.Warn("navigation after login failed", zap.Error(err))
	}
	s.logger.Info("logged in", zap.String("email", creds.Email))
	return nil
}

// Logout always succeeds; storage and navigation errors are only logged.
func (s *Session) Logout(ctx context.Context) {
	if err := s.kv.Delete(ctx, store.KeyToken); err != nil {
		s.logger.Warn("delete token failed", zap.Error(err))
	}
	if err := s.kv.Delete(ctx, keyUser); err != nil {
		s.logger.Warn("delete identity failed", zap.Error(err))
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.setToken("")

	s.conn.Disconnect()

	if err := s.nav.Navigate(ctx, router.PathAuth); err != nil {
		s.logger.Warn("navigation after logout failed", zap.Error(err))
	}
	s.logger.Info("logged out")
}

// CheckAuthAndConnect opens the push channel when a token is present.
func (s *Session) CheckAuthAndConnect(ctx context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	if err := s.conn.Connect(ctx); err != nil {
		s.logger.Warn("push channel unavailable", zap.Error(err))
	}
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(token != "")
	}
}
