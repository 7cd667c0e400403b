package httptransport

import (
	"encoding/json"
	"net/http"

	"veridoc/pkg/dcerrors"
)

// writeError centralizes domain error translation to HTTP responses so every
// failure crossing the boundary is a structured {ok, error, message}
// envelope, never a bare exception.
func writeError(w http.ResponseWriter, err error) {
	code := dcerrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dcerrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      false,
		"error":   string(code),
		"message": dcerrors.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
