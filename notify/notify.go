// Package notify defines the outbound notification boundary. The
// authentication core hands off reset links and welcome messages here and
// never blocks on delivery details.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers user-facing messages. Implementations must be safe for
// concurrent use.
type Notifier interface {
	// PasswordReset delivers a single-use reset link to the address.
	PasswordReset(ctx context.Context, email, resetURL string) error
	// Welcome greets a newly registered user.
	Welcome(ctx context.Context, email, fullName string) error
}

// LogNotifier writes notifications to a structured logger instead of
// delivering them. Default for development and tests; the reset link
// appears in the server log.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier wraps a logger as a Notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) PasswordReset(ctx context.Context, email, resetURL string) error {
	n.Logger.Info("password reset requested",
		slog.String("email", email),
		slog.String("reset_url", resetURL))
	return nil
}

func (n *LogNotifier) Welcome(ctx context.Context, email, fullName string) error {
	n.Logger.Info("welcome notification",
		slog.String("email", email),
		slog.String("full_name", fullName))
	return nil
}

// Discard drops all notifications.
type Discard struct{}

func (Discard) PasswordReset(context.Context, string, string) error { return nil }
func (Discard) Welcome(context.Context, string, string) error      { return nil }
