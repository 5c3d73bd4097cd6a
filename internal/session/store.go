// Package session holds the authenticated identity and its credential, and
// survives restarts through a pluggable Persister.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotAuthenticated is returned when an operation requires a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Store is the single owner of the current session. It is safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	current   *Session
	persister Persister
	logger    *slog.Logger
	onEnd     []func()
	now       func() time.Time
}

// NewStore builds a session store backed by persister.
func NewStore(persister Persister, logger *slog.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	return &Store{persister: persister, logger: logger, now: time.Now}
}

// OnEnd registers a hook run after every logout or invalidation.
func (s *Store) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Restore loads the persisted session, discarding it when the credential has
// expired.
func (s *Store) Restore(ctx context.Context) (Session, bool, error) {
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	if loaded.Credential == "" || loaded.Expired(s.now()) {
		if err := s.persister.Clear(ctx); err != nil {
			s.logger.Warn("clear expired session", slog.Any("error", err))
		}
		return Session{}, false, nil
	}

	s.mu.Lock()
	s.current = &loaded
	s.mu.Unlock()
	return loaded, true, nil
}

// Begin installs a freshly authenticated session and persists it.
func (s *Store) Begin(ctx context.Context, sess Session) error {
	if sess.Credential == "" {
		return errors.New("session credential is required")
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	if sess.ExpiresAt == nil {
		if exp, ok := CredentialExpiry(sess.Credential); ok {
			sess.ExpiresAt = &exp
		}
	}
	sess.ReauthRequired = false

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	if err := s.persister.Save(ctx, sess); err != nil {
		return err
	}
	s.logger.Info("session started",
		slog.String("user_id", sess.UserID),
		slog.String("mode", string(sess.Mode)),
		slog.String("role", string(sess.Role)),
	)
	return nil
}

// Current returns the active session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Require returns the active session or ErrNotAuthenticated.
func (s *Store) Require() (Session, error) {
	sess, ok := s.Current()
	if !ok {
		return Session{}, ErrNotAuthenticated
	}
	return sess, nil
}

// Credential returns the bearer credential, empty when unauthenticated.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Credential
}

// IsDemo reports whether the active session is a demo session.
func (s *Store) IsDemo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.IsDemo()
}

// IsReal reports whether a backend-confirmed session is active.
func (s *Store) IsReal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && !s.current.IsDemo()
}

// State returns the credential state.
func (s *Store) State() State {
	sess, ok := s.Current()
	if !ok {
		return StateUnauthenticated
	}
	return sess.State()
}

// Update applies fn to the active session and persists the result.
func (s *Store) Update(ctx context.Context, fn func(*Session)) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	updated := *s.current
	fn(&updated)
	s.current = &updated
	s.mu.Unlock()
	return s.persister.Save(ctx, updated)
}

// FlagReauth marks the session as needing re-authentication without ending it.
// Background writes use this: they cannot surface an error to the user.
func (s *Store) FlagReauth(ctx context.Context) {
	s.mu.Lock()
	if s.current == nil || s.current.ReauthRequired {
		s.mu.Unlock()
		return
	}
	s.current.ReauthRequired = true
	flagged := *s.current
	s.mu.Unlock()

	if err := s.persister.Save(ctx, flagged); err != nil {
		s.logger.Warn("persist reauth flag", slog.Any("error", err))
	}
	s.logger.Warn("session flagged for re-authentication", slog.String("user_id", flagged.UserID))
}

// Invalidate ends the session after the backend rejected its credential.
func (s *Store) Invalidate(ctx context.Context, reason string) {
	sess, ok := s.Current()
	if !ok {
		return
	}
	s.logger.Warn("session invalidated", slog.String("user_id", sess.UserID), slog.String("reason", reason))
	if err := s.End(ctx); err != nil {
		s.logger.Error("clear invalidated session", slog.Any("error", err))
	}
}

// End logs out: the session is dropped, the persisted copy removed and the
// teardown hooks run.
func (s *Store) End(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	hooks := append([]func(){}, s.onEnd...)
	s.mu.Unlock()

	err := s.persister.Clear(ctx)
	for _, hook := range hooks {
		hook()
	}
	return err
}
