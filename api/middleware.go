package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/auth"
)

const sessionCookieName = "session"

func (a *API) writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// sessionToken extracts the session cookie value, empty if absent.
func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// requestIsSecure decides whether cookies carry the Secure flag. In
// production it is unconditional; otherwise it follows the inbound scheme,
// honoring forwarded-proto headers for TLS-terminating proxies.
func (a *API) requestIsSecure(r *http.Request) bool {
	if a.production {
		return true
	}
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

// requestMeta captures the transport context recorded in login logs.
func (a *API) requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IP:        a.extractClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
