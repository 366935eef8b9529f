package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTTL        = time.Hour
)

// CSRFMiddleware enforces double-submit cookie CSRF protection on every
// mutating request, authenticated or not. Login and signup are covered
// too: a browser must fetch /csrf before submitting credentials. Safe
// methods (GET, HEAD, OPTIONS) are exempt.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if header == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IssueCSRFToken handles GET /csrf. The token is returned in the body and
// mirrored into an HttpOnly cookie; the client echoes the body value in
// the X-CSRF-Token header on mutating requests. A cross-origin page can do
// neither: it cannot read the response body and cannot set the header.
func (a *API) IssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, CSRFResponse{CSRFToken: token})
}

// clearCSRFCookie removes the CSRF cookie on logout.
func (a *API) clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
