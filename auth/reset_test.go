package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cam1McH/RainienShare-sub001/notify"
)

// captureNotifier records reset links so tests can extract the token.
type captureNotifier struct {
	mu        sync.Mutex
	resetURLs []string
}

func (n *captureNotifier) PasswordReset(_ context.Context, _, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetURLs = append(n.resetURLs, resetURL)
	return nil
}

func (n *captureNotifier) Welcome(context.Context, string, string) error { return nil }

var _ notify.Notifier = (*captureNotifier)(nil)

func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resetURLs)
	u := n.resetURLs[len(n.resetURLs)-1]
	const marker = "token="
	i := len(u) - 1
	for ; i > 0; i-- {
		if u[i] == '=' {
			break
		}
	}
	require.Greater(t, i, 0)
	return u[i+1:]
}

func newResetService(t *testing.T) (*Service, *captureNotifier, *testClock) {
	t.Helper()
	svc, _, clock := newTestService(t)
	notifier := &captureNotifier{}
	svc.notifier = notifier
	return svc, notifier, clock
}

func TestPasswordResetRoundTrip(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	token := notifier.lastToken(t)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "brand new password", RequestMeta{}))

	// Old password dead, new password live.
	res, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)

	res, err = svc.Authenticate(ctx, "dana@example.com", "brand new password", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRequire2FASetup, res.Status)
}

func TestPasswordResetTokenIsSingleUse(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	token := notifier.lastToken(t)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "brand new password", RequestMeta{}))
	err := svc.ConfirmPasswordReset(ctx, token, "second try password", RequestMeta{})
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetTokenExpires(t *testing.T) {
	svc, notifier, clock := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	token := notifier.lastToken(t)

	clock.Advance(resetTokenTTL + time.Minute)
	err := svc.ConfirmPasswordReset(ctx, token, "brand new password", RequestMeta{})
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetNewRequestReplacesToken(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	first := notifier.lastToken(t)
	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	second := notifier.lastToken(t)
	require.NotEqual(t, first, second)

	err := svc.ConfirmPasswordReset(ctx, first, "brand new password", RequestMeta{})
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, second, "brand new password", RequestMeta{}))
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com", "https://app.example.com", RequestMeta{}))
	assert.Empty(t, notifier.resetURLs)
}

func TestPasswordResetRejectsWeakPassword(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	token := notifier.lastToken(t)

	err := svc.ConfirmPasswordReset(ctx, token, "short", RequestMeta{})
	assert.ErrorIs(t, err, ErrWeakPassword)

	// The failed attempt must not burn the token.
	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "brand new password", RequestMeta{}))
}

func TestPasswordResetRevokesSessions(t *testing.T) {
	svc, notifier, clock := newResetService(t)
	ctx := context.Background()
	user, _ := mustSignup(t, svc, "dana@example.com")

	login, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	code, err := TOTPCodeAt(login.Setup.Secret, clock.Now())
	require.NoError(t, err)
	verified, err := svc.VerifyTwoFactor(ctx, UserRef{UserID: user.ID}, code, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, StatusAuthenticated, verified.Status)

	_, err = svc.sessions.Resolve(ctx, verified.Session.Token)
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	require.NoError(t, svc.ConfirmPasswordReset(ctx, notifier.lastToken(t), "brand new password", RequestMeta{}))

	_, err = svc.sessions.Resolve(ctx, verified.Session.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPasswordResetRejectsEmptyToken(t *testing.T) {
	svc, _, _ := newResetService(t)
	err := svc.ConfirmPasswordReset(context.Background(), "", "brand new password", RequestMeta{})
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetClearsLockout(t *testing.T) {
	svc, notifier, _ := newResetService(t)
	ctx := context.Background()
	mustSignup(t, svc, "dana@example.com")

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := svc.Authenticate(ctx, "dana@example.com", "wrong", RequestMeta{})
		require.NoError(t, err)
	}
	locked, err := svc.Authenticate(ctx, "dana@example.com", "correct horse battery", RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, StatusLocked, locked.Status)

	require.NoError(t, svc.RequestPasswordReset(ctx, "dana@example.com", "https://app.example.com", RequestMeta{}))
	require.NoError(t, svc.ConfirmPasswordReset(ctx, notifier.lastToken(t), "brand new password", RequestMeta{}))

	res, err := svc.Authenticate(ctx, "dana@example.com", "brand new password", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusRequire2FASetup, res.Status)
}
