// Package memory provides an in-memory storage.Store for tests and
// single-process development use. All state is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/storage"
)

// Store implements storage.Store with mutex-guarded maps.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]*storage.User
	byEmail  map[string]int64
	sessions map[string]*storage.Session
	attempts []storage.LoginAttempt
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*storage.User),
		byEmail:  make(map[string]int64),
		sessions: make(map[string]*storage.Session),
	}
}

func (s *Store) CreateUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return storage.ErrDuplicateEmail
	}
	s.nextID++
	u.ID = s.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) UserByID(_ context.Context, id int64) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateTwoFactor(_ context.Context, userID int64, secret string, enabled, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.TOTPSecret = secret
	u.TwoFactorEnabled = enabled
	u.TwoFactorVerified = verified
	return nil
}

func (s *Store) IncrementLoginAttempts(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	u.LoginAttempts++
	return u.LoginAttempts, nil
}

func (s *Store) ResetLoginAttempts(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.LoginAttempts = 0
	return nil
}

func (s *Store) LockUntil(_ context.Context, userID int64, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	t := until
	u.LockedUntil = &t
	return nil
}

func (s *Store) SetResetToken(_ context.Context, userID int64, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.ResetToken = token
	e := expiry
	u.ResetTokenExpiry = &e
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, token, newPasswordHash string, now time.Time) (int64, error) {
	if strings.TrimSpace(token) == "" {
		return 0, storage.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetToken != token {
			continue
		}
		if u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
			return 0, storage.ErrNotFound
		}
		u.PasswordHash = newPasswordHash
		u.ResetToken = ""
		u.ResetTokenExpiry = nil
		u.LoginAttempts = 0
		u.LockedUntil = nil
		return u.ID, nil
	}
	return 0, storage.ErrNotFound
}

func (s *Store) CreateSession(_ context.Context, sess *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *Store) SessionByToken(_ context.Context, token string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *Store) AppendLoginAttempt(_ context.Context, a *storage.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	if cp.At.IsZero() {
		cp.At = time.Now().UTC()
	}
	s.attempts = append(s.attempts, cp)
	return nil
}

// LoginAttempts returns a copy of the recorded attempts. Test helper.
func (s *Store) LoginAttempts() []storage.LoginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.LoginAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}
