// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package api defines the HTTP surface of kteeth: the chi router, the
// authentication and session endpoints, the users CRUD, and the health
// and JWKS documents.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kteeth/kteeth/internal/logging"
)

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

// respondError writes a JSON error body. The message is intended for
// clients; internal details belong in the log, not here.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondText writes a plain-text response.
func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logging.Err(err).Msg("failed to write response")
	}
}
