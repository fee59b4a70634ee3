package httpapi

import (
	"encoding/json"
	"net/http"

	"empower1.com/ledgerd/internal/ledgererr"
)

// messageResponse is the envelope carrying a single human-readable
// "message" field: every error uses it, as do the message-only success
// responses (validation, upload, shutdown).
type messageResponse struct {
	Message string `json:"message"`
}

func authError(msg string) error {
	return ledgererr.AuthError("%s", msg)
}

// statusFor maps an error's Kind to the HTTP status the spec's error
// handling design assigns it. Reconciliation/chain-validation responses
// that report rather than fail a request are handled by their own
// handlers and never reach this mapping.
func statusFor(err error) int {
	kind, _ := ledgererr.KindOf(err)
	switch kind {
	case ledgererr.Validation, ledgererr.Auth, ledgererr.Integrity:
		return http.StatusBadRequest
	case ledgererr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(messageResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
