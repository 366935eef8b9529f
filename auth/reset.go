package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/internal/util"
	"github.com/Cam1McH/RainienShare-sub001/storage"
)

const (
	resetTokenBytes = 32
	// resetTokenTTL bounds the window in which a reset link works.
	resetTokenTTL = time.Hour
)

// RequestPasswordReset issues a single-use reset token and hands the link
// to the notifier. A request for an unknown address is a silent no-op, so
// the endpoint cannot be used to probe which emails are registered.
// Requesting again before the previous token is used replaces it; only the
// newest token is live.
func (s *Service) RequestPasswordReset(ctx context.Context, email, baseURL string, meta RequestMeta) error {
	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	token, err := util.RandomToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}
	expiry := s.now().Add(s.resetTTL).UTC()
	if err := s.store.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return fmt.Errorf("persisting reset token: %w", err)
	}

	s.logger.Info("password reset token issued",
		slog.Int64("user_id", user.ID),
		slog.String("ip", meta.IP),
		slog.Time("expires_at", expiry))

	// Delivery failures are logged, not surfaced: the caller's response
	// must not change based on whether the address exists or mail works.
	if err := s.notifier.PasswordReset(ctx, user.Email, resetURL(baseURL, token)); err != nil {
		s.logger.Error("password reset notification failed",
			slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
	}
	return nil
}

// ConfirmPasswordReset consumes a reset token, replaces the password, and
// revokes every session the user has. Token consumption is atomic at the
// storage layer: two concurrent confirmations with the same token cannot
// both succeed.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if token == "" {
		return ErrResetTokenInvalid
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.store.ConsumeResetToken(ctx, token, hash, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("consuming reset token: %w", err)
	}

	if err := s.sessions.DestroyAll(ctx, userID); err != nil {
		return fmt.Errorf("revoking sessions after reset: %w", err)
	}

	s.logger.Info("password reset completed",
		slog.Int64("user_id", userID),
		slog.String("ip", meta.IP))
	return nil
}

func resetURL(baseURL, token string) string {
	return baseURL + "/password/reset?token=" + url.QueryEscape(token)
}
