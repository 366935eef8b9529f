package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess          AuditEvent = "login_success"
	AuditLoginFailure          AuditEvent = "login_failure"
	AuditLoginLocked           AuditEvent = "login_locked"
	AuditLoginRateLimited      AuditEvent = "login_rate_limited"
	AuditSignup                AuditEvent = "signup"
	AuditSignupRateLimited     AuditEvent = "signup_rate_limited"
	AuditLogout                AuditEvent = "logout"
	AuditTwoFactorSetup        AuditEvent = "2fa_setup"
	AuditTwoFactorEnabled      AuditEvent = "2fa_enabled"
	AuditTwoFactorFailure      AuditEvent = "2fa_failure"
	AuditPasswordResetRequest  AuditEvent = "password_reset_requested"
	AuditPasswordResetConsumed AuditEvent = "password_reset_consumed"
	AuditPasswordResetRejected AuditEvent = "password_reset_rejected"
	AuditResetRateLimited      AuditEvent = "password_reset_rate_limited"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logUser is a convenience for events tied to a user id.
func (al *auditLogger) logUser(event AuditEvent, r *http.Request, userID int64, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed or throttled attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
