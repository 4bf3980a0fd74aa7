package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	authd "github.com/solgate/authd"
	"github.com/solgate/authd/store"
	"github.com/solgate/authd/token"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

// writeEngineError maps engine/codec/store sentinels onto HTTP statuses.
// Token faults are 401 regardless of flavor; only the subject-mismatch
// case is a 400, since it signals a malformed request rather than a bad
// token. Store outages are 503 so load balancers back off.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrExpired):
		writeError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrMalformed):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, authd.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "token revoked")
	case errors.Is(err, authd.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "unknown subject")
	case errors.Is(err, authd.ErrSubjectMismatch):
		writeError(w, http.StatusBadRequest, "token subject mismatch")
	case errors.Is(err, store.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
