// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealth reports the connection pool state. The endpoint never
// fails: when the pool is missing or unreachable, the database section
// carries an error field and the status degrades, but the response is
// still a 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	var dbSection any

	switch {
	case s.db == nil:
		status = "degraded"
		dbSection = map[string]string{"error": "database not connected"}

	default:
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.Ping(ctx); err != nil {
			status = "degraded"
			dbSection = map[string]string{"error": err.Error()}
		} else {
			dbSection = s.db.Stats()
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"database":  dbSection,
		"timestamp": time.Now().UnixMilli(),
		"status":    status,
	})
}
