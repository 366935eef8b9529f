package auth

import "errors"

// Expected authentication outcomes (wrong password, locked account, bad
// code) travel in Result values, not errors. The sentinels below cover the
// remaining expected failures of operations outside the login state
// machine; anything else returned as an error is an infrastructure fault
// that handlers surface as a 500 without detail.
var (
	// ErrUserNotFound is returned by operations that are allowed to reveal
	// account existence (two-factor setup and verification, which require
	// a successful password phase first). Credential lookups never return
	// it to the client.
	ErrUserNotFound = errors.New("user not found")
	// ErrSetupMissing is returned when two-factor verification is
	// attempted for a user with no TOTP secret on file.
	ErrSetupMissing = errors.New("two-factor setup has not been completed")
	// ErrDuplicateEmail is returned by Signup for an already-registered email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrResetTokenInvalid is returned when a password-reset token does
	// not match a live token. Consumed and expired tokens are
	// indistinguishable from never-issued ones.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrInvalidEmail is returned for syntactically invalid email input.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword is returned when a password fails the minimum
	// strength requirements.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)
