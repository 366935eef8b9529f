// Package api exposes the authentication service over HTTP: credential
// login, TOTP enrollment and verification, session cookies, CSRF
// protection, and the password-reset endpoints.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/Cam1McH/RainienShare-sub001/auth"
	"github.com/Cam1McH/RainienShare-sub001/ratelimit"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	auth           *auth.Service
	sessions       *auth.SessionManager
	limiter        *ratelimit.Limiter
	audit          *auditLogger
	trustedProxies []netip.Prefix
	baseURL        string
	production     bool
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers are
// honored when extracting the client IP. Empty means headers are ignored.
func WithTrustedProxies(proxies []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = proxies
	}
}

// WithBaseURL sets the external origin used in password-reset links.
func WithBaseURL(baseURL string) Option {
	return func(a *API) {
		a.baseURL = baseURL
	}
}

// WithProduction enables production hardening: Secure cookies regardless
// of the inbound scheme.
func WithProduction(production bool) Option {
	return func(a *API) {
		a.production = production
	}
}

// New creates a new API instance.
func New(svc *auth.Service, sessions *auth.SessionManager, limiter *ratelimit.Limiter, opts ...Option) *API {
	a := &API{
		auth:     svc,
		sessions: sessions,
		limiter:  limiter,
		baseURL:  "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	// CSRF applies to every mutating route, including login and signup:
	// the double-submit token is bound to the browser, not to a session.
	r.Group(func(r chi.Router) {
		r.Use(a.CSRFMiddleware)

		r.Post("/login", a.Login)
		r.Post("/signup", a.Signup)
		r.Post("/2fa/setup", a.SetupTwoFactor)
		r.Post("/2fa/verify", a.VerifyTwoFactor)
		r.Post("/logout", a.Logout)
		r.Post("/password/reset-request", a.RequestPasswordReset)
		r.Post("/password/reset", a.ConfirmPasswordReset)
	})

	r.Get("/me", a.Me)
	r.Get("/csrf", a.IssueCSRFToken)

	return r
}
