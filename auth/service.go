// Package auth implements the authentication core: the credential login
// state machine, mandatory TOTP enrollment and verification, account
// lockout, session issuance, and the password-reset flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/notify"
	"github.com/Cam1McH/RainienShare-sub001/storage"
)

const (
	// maxLoginAttempts is the number of consecutive password failures
	// before the account is temporarily locked.
	maxLoginAttempts = 5
	// lockoutDuration is how long a locked account rejects all logins.
	lockoutDuration = 15 * time.Minute

	defaultIssuer = "Rainien"
)

// Status is the outcome of one step of the authentication state machine.
type Status int

const (
	// StatusRejected: bad credentials or bad code. The reason is generic
	// by design so responses cannot be used for account enumeration.
	StatusRejected Status = iota
	// StatusLocked: the account is inside its lockout window. No password
	// comparison took place.
	StatusLocked
	// StatusRequire2FASetup: the password phase passed but enrollment is
	// missing or incomplete; the result carries a fresh challenge.
	StatusRequire2FASetup
	// StatusRequire2FAVerify: the password phase passed and the user must
	// now submit a TOTP code. No session exists yet.
	StatusRequire2FAVerify
	// StatusAuthenticated: full authentication; the result carries the
	// user and a live session.
	StatusAuthenticated
)

// Rejection reasons recorded in login logs and surfaced as generic client
// messages.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonInvalidCode        = "invalid_code"
	ReasonAccountLocked      = "account_locked"
)

// EnrollmentChallenge carries the artifacts a client needs to enroll an
// authenticator app.
type EnrollmentChallenge struct {
	Secret     string
	OtpauthURL string
}

// Result is the expected outcome of Authenticate or VerifyTwoFactor.
// Infrastructure faults travel separately in the error return.
type Result struct {
	Status      Status
	UserID      int64
	Reason      string
	LockedUntil time.Time
	TwoFactor   TwoFactorState
	Setup       *EnrollmentChallenge
	User        *storage.User
	Session     *storage.Session
	// EnrolledNow is set when this verification committed the enrollment
	// for the first time.
	EnrolledNow bool
}

// LockMinutesRemaining is the coarse remaining-lock estimate reported to
// clients, rounded up so "1 minute" never means "already expired".
func (r Result) LockMinutesRemaining(now time.Time) int {
	if r.Status != StatusLocked {
		return 0
	}
	mins := int(r.LockedUntil.Sub(now).Minutes()) + 1
	if mins < 1 {
		mins = 1
	}
	return mins
}

// RequestMeta is the transport context recorded with login attempts.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UserRef identifies a user by email or id for two-factor verification.
type UserRef struct {
	Email  string
	UserID int64
}

// Service is the authentication state machine with its collaborators
// injected at construction time.
type Service struct {
	store    storage.Store
	sessions *SessionManager
	notifier notify.Notifier
	logger   *slog.Logger
	issuer   string
	// debugCodes logs the currently valid TOTP code after a failed
	// verification. Gated off in production builds of the config.
	debugCodes bool
	now        func() time.Time
	resetTTL   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the issuer name embedded in provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithNotifier sets the outbound notifier for reset and welcome mail.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the structured logger for security side effects.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDebugCodes enables the non-production diagnostic that logs the
// expected TOTP code after a failed verification.
func WithDebugCodes(enabled bool) Option {
	return func(s *Service) { s.debugCodes = enabled }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the authentication service.
func NewService(store storage.Store, sessions *SessionManager, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sessions: sessions,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		issuer:   defaultIssuer,
		now:      time.Now,
		resetTTL: resetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Sessions share the service clock so lockout and expiry tests agree.
	sessions.now = s.now
	return s
}

// Authenticate runs the password phase of the login state machine. It
// never issues a session: the best possible outcome is a demand for
// two-factor proof (setup or verify).
func (s *Service) Authenticate(ctx context.Context, email, password string, meta RequestMeta) (Result, error) {
	now := s.now()

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		// Indistinguishable from a wrong password.
		s.logAttempt(ctx, 0, email, meta, false, ReasonInvalidCredentials)
		return Result{Status: StatusRejected, Reason: ReasonInvalidCredentials}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("looking up credentials: %w", err)
	}

	// The lock short-circuits before any password comparison, so a locked
	// response reveals nothing about password correctness.
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.logAttempt(ctx, user.ID, email, meta, false, ReasonAccountLocked)
		return Result{Status: StatusLocked, UserID: user.ID, Reason: ReasonAccountLocked, LockedUntil: *user.LockedUntil}, nil
	}

	if !CheckPassword(user.PasswordHash, password) {
		return s.recordPasswordFailure(ctx, user, email, meta, now)
	}

	// Counter reset is unconditional on success; an expired lock lapses by
	// time alone and is not cleared here.
	if err := s.store.ResetLoginAttempts(ctx, user.ID); err != nil {
		return Result{}, fmt.Errorf("resetting lockout counter: %w", err)
	}

	tf, err := twoFactorStateOf(user)
	if err != nil {
		return Result{}, err
	}

	if tf.Verified() {
		s.logAttempt(ctx, user.ID, email, meta, true, "password_verified")
		return Result{Status: StatusRequire2FAVerify, UserID: user.ID, TwoFactor: tf}, nil
	}

	// Enrollment is missing (never started) or incomplete (secret issued
	// but never confirmed). Either way the secret is regenerated so a
	// stale QR code can never be confirmed later.
	challenge, newState, err := s.reissueSecret(ctx, user, tf)
	if err != nil {
		return Result{}, err
	}
	s.logAttempt(ctx, user.ID, email, meta, true, "two_factor_setup_required")
	return Result{Status: StatusRequire2FASetup, UserID: user.ID, TwoFactor: newState, Setup: challenge}, nil
}

// recordPasswordFailure applies the lockout policy after a password
// mismatch. Counter mutation happens before the attempt log and before the
// result is returned.
func (s *Service) recordPasswordFailure(ctx context.Context, user *storage.User, email string, meta RequestMeta, now time.Time) (Result, error) {
	attempts, err := s.store.IncrementLoginAttempts(ctx, user.ID)
	if err != nil {
		return Result{}, fmt.Errorf("recording failed attempt: %w", err)
	}

	if attempts >= maxLoginAttempts {
		until := now.Add(lockoutDuration).UTC()
		if err := s.store.LockUntil(ctx, user.ID, until); err != nil {
			return Result{}, fmt.Errorf("locking account: %w", err)
		}
		s.logger.Warn("account locked after repeated failures",
			slog.Int64("user_id", user.ID),
			slog.Int("attempts", attempts),
			slog.String("ip", meta.IP),
			slog.Time("locked_until", until))
		s.logAttempt(ctx, user.ID, email, meta, false, ReasonAccountLocked)
		return Result{Status: StatusLocked, UserID: user.ID, Reason: ReasonAccountLocked, LockedUntil: until}, nil
	}

	s.logAttempt(ctx, user.ID, email, meta, false, ReasonInvalidCredentials)
	return Result{Status: StatusRejected, UserID: user.ID, Reason: ReasonInvalidCredentials}, nil
}

// reissueSecret generates and persists a fresh TOTP secret, keeping the
// enabled flag as-is for incomplete enrollments and off for first-timers,
// and verified off in both cases.
func (s *Service) reissueSecret(ctx context.Context, user *storage.User, tf TwoFactorState) (*EnrollmentChallenge, TwoFactorState, error) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		return nil, TwoFactorState{}, err
	}
	enabled := tf.Enabled()
	if err := s.store.UpdateTwoFactor(ctx, user.ID, secret, enabled, false); err != nil {
		return nil, TwoFactorState{}, fmt.Errorf("persisting two-factor secret: %w", err)
	}
	phase := TwoFactorNotEnrolled
	if enabled {
		phase = TwoFactorPending
	}
	return &EnrollmentChallenge{
		Secret:     secret,
		OtpauthURL: ProvisioningURL(s.issuer, user.Email, secret),
	}, TwoFactorState{Phase: phase, Secret: secret}, nil
}

// SetupTwoFactor regenerates the enrollment challenge for a user,
// invalidating any previously issued unconfirmed secret.
func (s *Service) SetupTwoFactor(ctx context.Context, email string) (*EnrollmentChallenge, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	tf, err := twoFactorStateOf(user)
	if err != nil {
		return nil, err
	}
	challenge, _, err := s.reissueSecret(ctx, user, tf)
	return challenge, err
}

// VerifyTwoFactor runs the second phase of the state machine. On the first
// successful check it commits the enrollment (enabled and verified both
// set); every success issues a session.
func (s *Service) VerifyTwoFactor(ctx context.Context, ref UserRef, code string, meta RequestMeta) (Result, error) {
	user, err := s.resolveRef(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if user.TOTPSecret == "" {
		return Result{}, ErrSetupMissing
	}

	if !VerifyTOTPCode(user.TOTPSecret, code, s.now()) {
		s.logAttempt(ctx, user.ID, user.Email, meta, false, ReasonInvalidCode)
		if s.debugCodes {
			if expected, err := TOTPCodeAt(user.TOTPSecret, s.now()); err == nil {
				s.logger.Debug("two-factor verification failed",
					slog.Int64("user_id", user.ID),
					slog.String("expected_code", expected))
			}
		}
		return Result{Status: StatusRejected, UserID: user.ID, Reason: ReasonInvalidCode}, nil
	}

	enrolledNow := !user.TwoFactorVerified
	if enrolledNow {
		if err := s.store.UpdateTwoFactor(ctx, user.ID, user.TOTPSecret, true, true); err != nil {
			return Result{}, fmt.Errorf("committing two-factor enrollment: %w", err)
		}
		user.TwoFactorEnabled = true
		user.TwoFactorVerified = true
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return Result{}, err
	}

	s.logAttempt(ctx, user.ID, user.Email, meta, true, "two_factor_verified")
	tf, err := twoFactorStateOf(user)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Status:      StatusAuthenticated,
		UserID:      user.ID,
		TwoFactor:   tf,
		User:        user,
		Session:     sess,
		EnrolledNow: enrolledNow,
	}, nil
}

func (s *Service) resolveRef(ctx context.Context, ref UserRef) (*storage.User, error) {
	var (
		user *storage.User
		err  error
	)
	switch {
	case ref.Email != "":
		user, err = s.store.UserByEmail(ctx, ref.Email)
	case ref.UserID != 0:
		user, err = s.store.UserByID(ctx, ref.UserID)
	default:
		return nil, ErrUserNotFound
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}

// SignupParams is the input to Signup.
type SignupParams struct {
	FullName     string
	Email        string
	Password     string
	BusinessName string
	BusinessType string
	AccountType  string
}

// Signup creates a credential record with a freshly generated, unconfirmed
// TOTP secret and returns the enrollment challenge. The welcome
// notification is fire-and-forget.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*storage.User, *EnrollmentChallenge, error) {
	email := strings.TrimSpace(p.Email)
	if !validEmail(email) {
		return nil, nil, ErrInvalidEmail
	}
	if err := validatePassword(p.Password); err != nil {
		return nil, nil, err
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, nil, err
	}
	secret, err := GenerateTOTPSecret()
	if err != nil {
		return nil, nil, err
	}

	accountType := p.AccountType
	if accountType == "" {
		accountType = "personal"
	}
	user := &storage.User{
		Email:        email,
		FullName:     strings.TrimSpace(p.FullName),
		PasswordHash: hash,
		BusinessName: strings.TrimSpace(p.BusinessName),
		BusinessType: strings.TrimSpace(p.BusinessType),
		AccountType:  accountType,
		TOTPSecret:   secret,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, nil, ErrDuplicateEmail
		}
		return nil, nil, fmt.Errorf("creating user: %w", err)
	}

	if err := s.notifier.Welcome(ctx, user.Email, user.FullName); err != nil {
		s.logger.Error("welcome notification failed",
			slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
	}

	return user, &EnrollmentChallenge{
		Secret:     secret,
		OtpauthURL: ProvisioningURL(s.issuer, user.Email, secret),
	}, nil
}

// logAttempt records a login attempt. Best-effort: a logging failure never
// changes the primary result.
func (s *Service) logAttempt(ctx context.Context, userID int64, email string, meta RequestMeta, success bool, reason string) {
	err := s.store.AppendLoginAttempt(ctx, &storage.LoginAttempt{
		UserID:    userID,
		Email:     email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		Reason:    reason,
		At:        s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("login attempt log failed", slog.String("error", err.Error()))
	}
}

// validEmail is a deliberately loose shape check; the mailbox is the real
// validator.
func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\r\n")
}
