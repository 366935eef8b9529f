package api

import (
	"encoding/json"
	"net/http"
)

// maxAuthBodySize bounds request bodies on the auth endpoints. Nothing
// legitimate comes close.
const maxAuthBodySize = 16 << 10

// decodeJSON decodes the request body into T, rejecting oversized or
// malformed bodies. On failure it writes the 400 response itself and
// returns ok=false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
