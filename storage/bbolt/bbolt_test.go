package bbolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cam1McH/RainienShare-sub001/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, email string) *storage.User {
	t.Helper()
	u := &storage.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: "hash-1",
		AccountType:  "business",
		TOTPSecret:   "JBSWY3DPEHPK3PXP",
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "a@b.com")
	require.NotZero(t, u.ID)

	byEmail, err := s.UserByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash-1", byEmail.PasswordHash, "secret columns must round-trip")
	assert.Equal(t, "JBSWY3DPEHPK3PXP", byEmail.TOTPSecret)

	err = s.CreateUser(context.Background(), &storage.User{Email: "a@b.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
}

func TestTwoFactorAndLockoutColumns(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "a@b.com")

	require.NoError(t, s.UpdateTwoFactor(context.Background(), u.ID, "NEWSECRET", true, true))
	got, err := s.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
	assert.True(t, got.TwoFactorVerified)
	assert.Equal(t, "NEWSECRET", got.TOTPSecret)

	n, err := s.IncrementLoginAttempts(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	until := time.Now().Add(15 * time.Minute).UTC()
	require.NoError(t, s.LockUntil(context.Background(), u.ID, until))
	got, err = s.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	assert.WithinDuration(t, until, *got.LockedUntil, time.Second)

	require.NoError(t, s.ResetLoginAttempts(context.Background(), u.ID))
	got, err = s.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LoginAttempts)
	assert.NotNil(t, got.LockedUntil, "reset of the counter must not clear the lock")
}

func TestResetTokenConsumption(t *testing.T) {
	s := newTestStore(t)
	u := createUser(t, s, "a@b.com")
	now := time.Now()

	require.NoError(t, s.SetResetToken(context.Background(), u.ID, "tok-old", now.Add(time.Hour)))
	// Issuing a new token replaces the old one and invalidates it.
	require.NoError(t, s.SetResetToken(context.Background(), u.ID, "tok-new", now.Add(time.Hour)))

	_, err := s.ConsumeResetToken(context.Background(), "tok-old", "h", now)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	id, err := s.ConsumeResetToken(context.Background(), "tok-new", "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = s.ConsumeResetToken(context.Background(), "tok-new", "again", now)
	assert.ErrorIs(t, err, storage.ErrNotFound, "tokens are single-use")
}

func TestSessionsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.db")

	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	u := createUser(t, s, "a@b.com")
	require.NoError(t, s.CreateSession(context.Background(), &storage.Session{
		Token: "tok", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}))
	require.NoError(t, s.Close())

	s, err = NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.SessionByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)
}

func TestDeleteUserSessionsOnly(t *testing.T) {
	s := newTestStore(t)
	u1 := createUser(t, s, "a@b.com")
	u2 := createUser(t, s, "c@d.com")

	exp := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.CreateSession(context.Background(), &storage.Session{Token: "s1", UserID: u1.ID, ExpiresAt: exp}))
	require.NoError(t, s.CreateSession(context.Background(), &storage.Session{Token: "s2", UserID: u1.ID, ExpiresAt: exp}))
	require.NoError(t, s.CreateSession(context.Background(), &storage.Session{Token: "s3", UserID: u2.ID, ExpiresAt: exp}))

	require.NoError(t, s.DeleteUserSessions(context.Background(), u1.ID))

	_, err := s.SessionByToken(context.Background(), "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.SessionByToken(context.Background(), "s2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.SessionByToken(context.Background(), "s3")
	assert.NoError(t, err)
}

func TestAppendLoginAttempt(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.AppendLoginAttempt(context.Background(), &storage.LoginAttempt{
		Email: "a@b.com", IP: "10.0.0.1", Success: true, Reason: "password_verified",
	}))
}
