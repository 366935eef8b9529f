package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Cam1McH/RainienShare-sub001/ratelimit"
)

// resetRequestAck is the single acknowledgement for every reset request,
// registered address or not.
const resetRequestAck = "if that email is registered, a reset link has been sent"

// RequestPasswordReset handles POST /password/reset-request. The response
// is identical whether or not the address is registered.
func (a *API) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ResetRequestRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	meta := a.requestMeta(r)
	res, err := a.limiter.Check(r.Context(), ratelimit.Key("reset_request", meta.IP), resetRequestPolicy)
	if err != nil {
		a.writeInternalError(w, "rate limiter unavailable", err)
		return
	}
	if !res.Allowed {
		a.audit.logFailure(AuditResetRateLimited, r, "too many reset requests",
			slog.String("client_ip", meta.IP))
		writeRateLimited(w, res)
		return
	}

	if err := a.auth.RequestPasswordReset(r.Context(), req.Email, a.baseURL, meta); err != nil {
		a.writeInternalError(w, "password reset request failed", err)
		return
	}

	a.audit.log(AuditPasswordResetRequest, r, slog.String("client_ip", meta.IP))
	writeJSON(w, http.StatusOK, MessageResponse{Message: resetRequestAck})
}

// ConfirmPasswordReset handles POST /password/reset. Consuming the token
// replaces the password and revokes every session the user had.
func (a *API) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ResetConfirmRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "reset token is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	meta := a.requestMeta(r)
	res, err := a.limiter.Check(r.Context(), ratelimit.Key("reset_confirm", meta.IP), resetConfirmPolicy)
	if err != nil {
		a.writeInternalError(w, "rate limiter unavailable", err)
		return
	}
	if !res.Allowed {
		a.audit.logFailure(AuditResetRateLimited, r, "too many reset confirmations",
			slog.String("client_ip", meta.IP))
		writeRateLimited(w, res)
		return
	}

	if err := a.auth.ConfirmPasswordReset(r.Context(), req.Token, req.Password, meta); err != nil {
		a.audit.logFailure(AuditPasswordResetRejected, r, err.Error(),
			slog.String("client_ip", meta.IP))
		a.mapAuthError(w, err)
		return
	}

	a.audit.log(AuditPasswordResetConsumed, r, slog.String("client_ip", meta.IP))
	writeJSON(w, http.StatusOK, ResetConfirmResponse{
		Message:       "password updated; please log in again",
		RequiresLogin: true,
	})
}
