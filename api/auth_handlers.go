package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/auth"
	"github.com/Cam1McH/RainienShare-sub001/ratelimit"
	"github.com/Cam1McH/RainienShare-sub001/storage"
)

// genericLoginFailure is the single message for every credential
// rejection, so responses cannot distinguish unknown emails from wrong
// passwords.
const genericLoginFailure = "invalid email or password"

// Login handles POST /login. It runs the password phase only; a session
// is never issued here. The best outcome is a two-factor challenge.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	meta := a.requestMeta(r)
	key := ratelimit.Key("login", meta.IP, req.Email)
	res, err := a.limiter.Check(r.Context(), key, loginPolicy)
	if err != nil {
		a.writeInternalError(w, "rate limiter unavailable", err)
		return
	}
	if !res.Allowed {
		a.audit.logFailure(AuditLoginRateLimited, r, "too many login attempts",
			slog.String("client_ip", meta.IP))
		writeRateLimited(w, res)
		return
	}

	result, err := a.auth.Authenticate(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		a.writeInternalError(w, "authentication failed", err)
		return
	}

	switch result.Status {
	case auth.StatusRejected:
		a.audit.logFailure(AuditLoginFailure, r, result.Reason,
			slog.String("client_ip", meta.IP))
		writeError(w, http.StatusUnauthorized, genericLoginFailure)

	case auth.StatusLocked:
		a.audit.logUser(AuditLoginLocked, r, result.UserID,
			slog.Time("locked_until", result.LockedUntil))
		writeJSON(w, http.StatusForbidden, LockedResponse{
			Error:            "account temporarily locked; try again later",
			MinutesRemaining: result.LockMinutesRemaining(time.Now()),
		})

	case auth.StatusRequire2FASetup:
		resp := LoginResponse{
			Requires2FA:      true,
			TwoFactorEnabled: result.TwoFactor.Enabled(),
			UserID:           result.UserID,
		}
		if result.Setup != nil {
			resp.QRCode = result.Setup.OtpauthURL
			resp.Secret = result.Setup.Secret
			resp.OtpauthURL = result.Setup.OtpauthURL
		}
		writeJSON(w, http.StatusOK, resp)

	case auth.StatusRequire2FAVerify:
		writeJSON(w, http.StatusOK, LoginResponse{
			Requires2FA:       true,
			TwoFactorEnabled:  true,
			TwoFactorVerified: true,
			UserID:            result.UserID,
		})

	default:
		a.writeInternalError(w, "unexpected authentication state",
			fmt.Errorf("unhandled status %d", result.Status))
	}
}

// Signup handles POST /signup.
func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SignupRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	meta := a.requestMeta(r)
	res, err := a.limiter.Check(r.Context(), ratelimit.Key("signup", meta.IP), signupPolicy)
	if err != nil {
		a.writeInternalError(w, "rate limiter unavailable", err)
		return
	}
	if !res.Allowed {
		a.audit.logFailure(AuditSignupRateLimited, r, "too many signups",
			slog.String("client_ip", meta.IP))
		writeRateLimited(w, res)
		return
	}

	user, challenge, err := a.auth.Signup(r.Context(), auth.SignupParams{
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		AccountType:  req.AccountType,
	})
	if err != nil {
		a.mapAuthError(w, err)
		return
	}

	a.audit.logUser(AuditSignup, r, user.ID)
	writeJSON(w, http.StatusCreated, SignupResponse{
		Success:                   true,
		UserID:                    user.ID,
		QRCode:                    challenge.OtpauthURL,
		Secret:                    challenge.Secret,
		OtpauthURL:                challenge.OtpauthURL,
		RequiresEmailVerification: true,
	})
}

// SetupTwoFactor handles POST /2fa/setup. It reissues the enrollment
// challenge, invalidating any previously issued unconfirmed secret.
func (a *API) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SetupTwoFactorRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	challenge, err := a.auth.SetupTwoFactor(r.Context(), req.Email)
	if err != nil {
		a.mapAuthError(w, err)
		return
	}

	a.audit.log(AuditTwoFactorSetup, r)
	writeJSON(w, http.StatusOK, SetupTwoFactorResponse{
		Success:    true,
		QRCode:     challenge.OtpauthURL,
		Secret:     challenge.Secret,
		OtpauthURL: challenge.OtpauthURL,
	})
}

// VerifyTwoFactor handles POST /2fa/verify. Success commits a pending
// enrollment and issues the session cookie.
func (a *API) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[VerifyTwoFactorRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	code := req.Code
	if code == "" {
		code = req.Token
	}
	if code == "" {
		writeError(w, http.StatusBadRequest, "verification code is required")
		return
	}
	if req.Email == "" && req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "email or userId is required")
		return
	}

	meta := a.requestMeta(r)
	result, err := a.auth.VerifyTwoFactor(r.Context(), auth.UserRef{Email: req.Email, UserID: req.UserID}, code, meta)
	if err != nil {
		a.mapAuthError(w, err)
		return
	}

	if result.Status != auth.StatusAuthenticated {
		a.audit.logUser(AuditTwoFactorFailure, r, result.UserID,
			slog.String("client_ip", meta.IP))
		writeError(w, http.StatusUnauthorized,
			"invalid verification code; check that your device clock is in sync")
		return
	}

	a.writeSessionCookie(w, r, result.Session.Token, result.Session.ExpiresAt)
	if result.EnrolledNow {
		a.audit.logUser(AuditTwoFactorEnabled, r, result.UserID)
	}
	a.audit.logUser(AuditLoginSuccess, r, result.UserID)
	writeJSON(w, http.StatusOK, VerifyTwoFactorResponse{
		Success: true,
		User:    userInfo(result.User),
	})
}

// Logout handles POST /logout. Destroying an absent session still
// succeeds; the cookies are cleared either way.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if err := a.sessions.Destroy(r.Context(), token); err != nil {
		a.writeInternalError(w, "logout failed", err)
		return
	}
	a.clearSessionCookie(w, r)
	a.clearCSRFCookie(w, r)
	a.audit.log(AuditLogout, r)
	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

// Me handles GET /me. It never fails toward the caller: any resolution
// problem reads as logged out, and a dead cookie is cleared in passing.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.sessions.Resolve(r.Context(), sessionToken(r))
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			a.audit.logger.Error("session resolution failed", slog.String("error", err.Error()))
		}
		a.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, MeResponse{LoggedIn: false})
		return
	}
	info := userInfo(user)
	writeJSON(w, http.StatusOK, MeResponse{LoggedIn: true, User: &info})
}

func userInfo(u *storage.User) UserInfo {
	return UserInfo{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		BusinessName:      u.BusinessName,
		BusinessType:      u.BusinessType,
		AccountType:       u.AccountType,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		TwoFactorVerified: u.TwoFactorVerified,
	}
}
