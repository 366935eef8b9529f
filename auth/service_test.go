package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cam1McH/RainienShare-sub001/storage"
	"github.com/Cam1McH/RainienShare-sub001/storage/memory"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *memory.Store, *testClock) {
	t.Helper()
	store := memory.NewStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, NewSessionManager(store), WithClock(clock.Now))
	return svc, store, clock
}

func mustSignup(t *testing.T, svc *Service, email string) (*storage.User, *EnrollmentChallenge) {
	t.Helper()
	user, challenge, err := svc.Signup(context.Background(), SignupParams{
		FullName: "Dana Tester",
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.NotNil(t, challenge)
	return user, challenge
}

func TestAuthenticateUnknownAndWrongPasswordLookAlike(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	unknown, err := svc.Authenticate(ctx, "nobody@example.com", "whatever123", RequestMeta{})
	require.NoError(t, err)
	wrongPw, err := svc.Authenticate(ctx, "dana@example.com", "not the password", RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, unknown.Status)
	assert.Equal(t, StatusRejected, wrongPw.Status)
	assert.Equal(t, unknown.Reason, wrongPw.Reason)
}

func TestAuthenticateLockout(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	for i := 0; i < maxLoginAttempts-1; i++ {
		res, err := svc.Authenticate(ctx, "dana@example.com", "wrong", RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res.Status, "attempt %d", i+1)
	}

	res, err := svc.Authenticate(ctx, "dana@example.com", "wrong", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, res.Status)
	assert.Equal(t, clock.Now().Add(lockoutDuration), res.LockedUntil)

	// Correct password is refused while locked; the lock check precedes the
	// password comparison.
	res, err = svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, res.Status)

	// The lock lapses by time alone.
	clock.Advance(lockoutDuration + time.Second)
	res, err = svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRequire2FASetup, res.Status)
}

func TestAuthenticateResetsCounterOnSuccess(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")

	for i := 0; i < 3; i++ {
		_, err := svc.Authenticate(ctx, "dana@example.com", "wrong", RequestMeta{})
		require.NoError(t, err)
	}

	_, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)

	stored, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)

	// Three more failures must not lock: the earlier three were forgiven.
	for i := 0; i < 3; i++ {
		res, err := svc.Authenticate(ctx, "dana@example.com", "wrong", RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res.Status)
	}
}

func TestAuthenticateFirstLoginDemandsSetup(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user, signupChallenge := mustSignup(t, svc, "dana@example.com")

	res, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusRequire2FASetup, res.Status)
	require.NotNil(t, res.Setup)
	assert.NotEmpty(t, res.Setup.Secret)
	assert.Contains(t, res.Setup.OtpauthURL, "otpauth://totp/")
	// The login reissues the secret, so the signup-time one is dead.
	assert.NotEqual(t, signupChallenge.Secret, res.Setup.Secret)

	stored, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Setup.Secret, stored.TOTPSecret)
	assert.False(t, stored.TwoFactorEnabled)
	assert.False(t, stored.TwoFactorVerified)
}

func TestAuthenticatePendingEnrollmentReissuesSecret(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")

	// Enabled but never verified: the user scanned a QR code once and
	// walked away mid-enrollment.
	require.NoError(t, store.UpdateTwoFactor(ctx, user.ID, "STALESECRETSTALESECRETSTALESECRE", true, false))

	res, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusRequire2FASetup, res.Status)
	require.NotNil(t, res.Setup)
	assert.NotEqual(t, "STALESECRETSTALESECRETSTALESECRE", res.Setup.Secret)

	stored, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)
	assert.False(t, stored.TwoFactorVerified)

	// The stale secret must not be able to complete enrollment.
	staleCode, err := TOTPCodeAt("STALESECRETSTALESECRETSTALESECRE", clock.Now())
	require.NoError(t, err)
	verify, err := svc.VerifyTwoFactor(ctx, UserRef{UserID: user.ID}, staleCode, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verify.Status)
}

func TestAuthenticateVerifiedUserGetsCodeChallenge(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")
	require.NoError(t, store.UpdateTwoFactor(ctx, user.ID, user.TOTPSecret, true, true))

	res, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusRequire2FAVerify, res.Status)
	assert.Equal(t, user.ID, res.UserID)
	assert.Nil(t, res.Setup)
	assert.Nil(t, res.Session)
}

func TestVerifyTwoFactorCommitsEnrollmentAndIssuesSession(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")

	login, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, StatusRequire2FASetup, login.Status)

	code, err := TOTPCodeAt(login.Setup.Secret, clock.Now())
	require.NoError(t, err)

	res, err := svc.VerifyTwoFactor(ctx, UserRef{Email: "dana@example.com"}, code, RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, StatusAuthenticated, res.Status)
	require.NotNil(t, res.Session)
	assert.Equal(t, user.ID, res.Session.UserID)

	stored, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)
	assert.True(t, stored.TwoFactorVerified)

	// Subsequent logins now land in the verify phase.
	next, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRequire2FAVerify, next.Status)
}

func TestVerifyTwoFactorWrongCode(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	res, err := svc.VerifyTwoFactor(ctx, UserRef{Email: "dana@example.com"}, "000000", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonInvalidCode, res.Reason)
	assert.Nil(t, res.Session)
}

func TestVerifyTwoFactorErrors(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")

	_, err := svc.VerifyTwoFactor(ctx, UserRef{Email: "ghost@example.com"}, "123456", RequestMeta{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.VerifyTwoFactor(ctx, UserRef{}, "123456", RequestMeta{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, store.UpdateTwoFactor(ctx, user.ID, "", false, false))
	_, err = svc.VerifyTwoFactor(ctx, UserRef{UserID: user.ID}, "123456", RequestMeta{})
	assert.ErrorIs(t, err, ErrSetupMissing)
}

func TestSetupTwoFactorReissues(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	user, first := mustSignup(t, svc, "dana@example.com")

	challenge, err := svc.SetupTwoFactor(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, challenge.Secret)

	stored, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.Secret, stored.TOTPSecret)

	_, err = svc.SetupTwoFactor(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	_, _, err := svc.Signup(ctx, SignupParams{Email: "dana@example.com", Password: "long enough pw"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, _, err = svc.Signup(ctx, SignupParams{Email: "not-an-email", Password: "long enough pw"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = svc.Signup(ctx, SignupParams{Email: "ok@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLoginAttemptsAreRecorded(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	meta := RequestMeta{IP: "203.0.113.9", UserAgent: "test-agent"}
	_, err := svc.Authenticate(ctx, "dana@example.com", "wrong", meta)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ghost@example.com", "wrong", meta)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "dana@example.com", "correct horse battery", meta)
	require.NoError(t, err)

	attempts := store.LoginAttempts()
	require.Len(t, attempts, 3)

	assert.False(t, attempts[0].Success)
	assert.Equal(t, ReasonInvalidCredentials, attempts[0].Reason)
	assert.Equal(t, "203.0.113.9", attempts[0].IP)

	// Unknown-account attempts are recorded too, without a user id.
	assert.Zero(t, attempts[1].UserID)
	assert.Equal(t, "ghost@example.com", attempts[1].Email)

	assert.True(t, attempts[2].Success)
}
