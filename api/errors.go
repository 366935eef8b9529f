package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Cam1McH/RainienShare-sub001/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs the real error server-side and sends the client
// a generic 500 with no detail.
func (a *API) writeInternalError(w http.ResponseWriter, context string, err error) {
	a.audit.logger.Error(context, slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// mapAuthError translates the auth package's expected-failure sentinels to
// status codes. Anything unrecognized is an infrastructure fault.
func (a *API) mapAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrSetupMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrResetTokenInvalid):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.writeInternalError(w, "request failed", err)
	}
}
