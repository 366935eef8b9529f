// Package storage defines the persistence interface for credential records,
// sessions, and login attempt logs, along with the record types shared by
// all backends.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist. For reset-token
	// consumption it also covers the expired-token case, so callers cannot
	// distinguish the two.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by CreateUser when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is a credential record. TOTP state is stored as the raw column
// triple (secret, enabled, verified); the auth package converts it to a
// validated TwoFactorState.
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	FullName          string     `json:"full_name"`
	PasswordHash      string     `json:"-"`
	BusinessName      string     `json:"business_name,omitempty"`
	BusinessType      string     `json:"business_type,omitempty"`
	AccountType       string     `json:"account_type"`
	TOTPSecret        string     `json:"-"`
	TwoFactorEnabled  bool       `json:"two_factor_enabled"`
	TwoFactorVerified bool       `json:"two_factor_verified"`
	LoginAttempts     int        `json:"-"`
	LockedUntil       *time.Time `json:"-"`
	ResetToken        string     `json:"-"`
	ResetTokenExpiry  *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Session maps an opaque token to a user id with an absolute expiry.
// Expiry is passive: backends return expired rows and the session manager
// rejects and deletes them at resolve time.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginAttempt is an audit row written for every login or two-factor
// verification outcome. UserID is zero when the account is unknown.
type LoginAttempt struct {
	UserID    int64
	Email     string
	IP        string
	UserAgent string
	Success   bool
	Reason    string
	At        time.Time
}

// Store is the persistence interface consumed by the auth package.
//
// Counter and token mutations are single logical operations so that
// concurrent callers race on store-level atomicity rather than on
// read-modify-write round trips.
type Store interface {
	// CreateUser inserts a new user and assigns its ID.
	// Returns ErrDuplicateEmail if the email is already registered.
	CreateUser(ctx context.Context, u *User) error
	// UserByEmail returns the user with the given email or ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*User, error)
	// UserByID returns the user with the given id or ErrNotFound.
	UserByID(ctx context.Context, id int64) (*User, error)

	// UpdateTwoFactor replaces the TOTP column triple for a user.
	UpdateTwoFactor(ctx context.Context, userID int64, secret string, enabled, verified bool) error

	// IncrementLoginAttempts adds one to the failure counter and returns
	// the new value.
	IncrementLoginAttempts(ctx context.Context, userID int64) (int, error)
	// ResetLoginAttempts sets the failure counter back to zero. It does not
	// touch locked_until; an expired lock lapses by time alone.
	ResetLoginAttempts(ctx context.Context, userID int64) error
	// LockUntil sets the lockout deadline for a user.
	LockUntil(ctx context.Context, userID int64, until time.Time) error

	// SetResetToken stores a password-reset token and its expiry,
	// replacing any previous token.
	SetResetToken(ctx context.Context, userID int64, token string, expiry time.Time) error
	// ConsumeResetToken atomically matches a live (non-expired) reset
	// token and, in the same operation, replaces the password hash, clears
	// the token and its expiry, and resets the lockout state. It returns
	// the affected user id, or ErrNotFound when no live token matches —
	// including a token that was already consumed.
	ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (int64, error)

	// CreateSession inserts a session record.
	CreateSession(ctx context.Context, s *Session) error
	// SessionByToken returns the session record or ErrNotFound. Expiry is
	// not checked here.
	SessionByToken(ctx context.Context, token string) (*Session, error)
	// DeleteSession removes a session. Deleting an absent session is not
	// an error.
	DeleteSession(ctx context.Context, token string) error
	// DeleteUserSessions removes every session belonging to a user.
	DeleteUserSessions(ctx context.Context, userID int64) error

	// AppendLoginAttempt records a login attempt. Callers treat failures
	// as best-effort and never let them mask the primary result.
	AppendLoginAttempt(ctx context.Context, a *LoginAttempt) error
}
