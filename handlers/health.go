package handlers

import (
	"net/http"
	"time"
)

// NewHealthCheck reports liveness and, when monitorState is set, the
// monitor's current state.
func NewHealthCheck(monitorState func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if monitorState != nil {
			body["monitor"] = monitorState()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
