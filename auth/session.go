package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/internal/util"
	"github.com/Cam1McH/RainienShare-sub001/storage"
)

// SessionTTL is the absolute lifetime of a session. There is no idle
// timeout and no renewal; expiry is checked passively at resolve time.
const SessionTTL = 7 * 24 * time.Hour

const sessionTokenBytes = 32

// ErrNoSession is returned by Resolve when the token is absent, expired,
// or its user no longer exists.
var ErrNoSession = errors.New("no active session")

// SessionManager issues, resolves, and revokes opaque session tokens
// persisted in the store. Concurrent sessions per user are allowed; a new
// login never evicts existing sessions. Password reset revokes them all.
type SessionManager struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionManager creates a SessionManager with the standard TTL.
func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{store: store, ttl: SessionTTL, now: time.Now}
}

// Create issues a new session for the user and persists it.
func (m *SessionManager) Create(ctx context.Context, userID int64) (*storage.Session, error) {
	token, err := util.RandomToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	sess := &storage.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: m.now().Add(m.ttl).UTC(),
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	return sess, nil
}

// Resolve returns the user a valid session token belongs to. Expired and
// orphaned sessions are deleted on sight and reported as ErrNoSession, so
// the caller knows to clear its cookie.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*storage.User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	sess, err := m.store.SessionByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(m.now()) {
		_ = m.store.DeleteSession(ctx, token)
		return nil, ErrNoSession
	}
	user, err := m.store.UserByID(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		_ = m.store.DeleteSession(ctx, token)
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Destroy revokes a session. Destroying an absent session is not an error.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, token)
}

// DestroyAll revokes every session belonging to a user, forcing re-login
// everywhere.
func (m *SessionManager) DestroyAll(ctx context.Context, userID int64) error {
	return m.store.DeleteUserSessions(ctx, userID)
}
