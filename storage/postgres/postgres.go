// Package postgres implements storage.Store backed by PostgreSQL.
//
// Counter, lock, and reset-token mutations are single UPDATE statements so
// that concurrent requests race on row-level atomicity rather than on
// read-modify-write round trips. Reset-token consumption in particular is a
// conditional UPDATE ... RETURNING, which guarantees a token is consumed at
// most once.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cam1McH/RainienShare-sub001/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore returns a Store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const userColumns = `id, email, full_name, password_hash, business_name, business_type,
	account_type, totp_secret, two_factor_enabled, two_factor_verified,
	login_attempts, locked_until, reset_token, reset_token_expiry, created_at`

func scanUser(row pgx.Row) (*storage.User, error) {
	var u storage.User
	var resetToken *string
	err := row.Scan(
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.BusinessName, &u.BusinessType,
		&u.AccountType, &u.TOTPSecret, &u.TwoFactorEnabled, &u.TwoFactorVerified,
		&u.LoginAttempts, &u.LockedUntil, &resetToken, &u.ResetTokenExpiry, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resetToken != nil {
		u.ResetToken = *resetToken
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, password_hash, business_name, business_type,
		                    account_type, totp_secret, two_factor_enabled, two_factor_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		u.Email, u.FullName, u.PasswordHash, u.BusinessName, u.BusinessType,
		u.AccountType, u.TOTPSecret, u.TwoFactorEnabled, u.TwoFactorVerified,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) UserByID(ctx context.Context, id int64) (*storage.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) UpdateTwoFactor(ctx context.Context, userID int64, secret string, enabled, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET totp_secret = $2, two_factor_enabled = $3, two_factor_verified = $4
		 WHERE id = $1`,
		userID, secret, enabled, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementLoginAttempts(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET login_attempts = login_attempts + 1
		 WHERE id = $1 RETURNING login_attempts`,
		userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return count, err
}

func (s *Store) ResetLoginAttempts(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET login_attempts = 0 WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) LockUntil(ctx context.Context, userID int64, until time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET locked_until = $2 WHERE id = $1`, userID, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) SetResetToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expiry = $3 WHERE id = $1`,
		userID, token, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (int64, error) {
	var userID int64
	err := s.pool.QueryRow(ctx,
		`UPDATE users
		 SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL,
		     login_attempts = 0, locked_until = NULL
		 WHERE reset_token = $1 AND reset_token_expiry > $3
		 RETURNING id`,
		token, newPasswordHash, now).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *storage.Session) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO sessions (token, user_id, expires_at)
		 VALUES ($1, $2, $3) RETURNING created_at`,
		sess.Token, sess.UserID, sess.ExpiresAt).Scan(&sess.CreatedAt)
}

func (s *Store) SessionByToken(ctx context.Context, token string) (*storage.Session, error) {
	var sess storage.Session
	err := s.pool.QueryRow(ctx,
		`SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = $1`,
		token).Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *Store) AppendLoginAttempt(ctx context.Context, a *storage.LoginAttempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO login_attempts (user_id, email, ip, user_agent, success, reason, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.UserID, a.Email, a.IP, a.UserAgent, a.Success, a.Reason, at)
	return err
}
