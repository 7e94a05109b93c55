// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"

	"github.com/kteeth/kteeth/internal/auth"
	"github.com/kteeth/kteeth/internal/logging"
)

// handleRoot serves the landing greeting.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondText(w, http.StatusOK, "Hello World!")
}

// handleHelloStream serves a single server-sent event. Clients see one
// "world" data frame and the stream stays open until they disconnect.
func (s *Server) handleHelloStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("data: world\n\n")); err != nil {
		return
	}
	flusher.Flush()

	<-r.Context().Done()
}

// handleGreeting greets the authenticated principal. Shared by every
// protected route group; the gateway guarantees a principal is set.
func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondText(w, http.StatusOK, "Hello "+principal.Username)
}

// handleLoginSession creates a session for the posted username
// (default "guest") and returns a freshly signed JWT. The role is
// derived from the username at creation time.
func (s *Server) handleLoginSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	username := r.FormValue("username")
	if username == "" {
		username = "guest"
	}

	// Token first: a failed issuance must not leave a live session
	// cookie behind.
	token, err := s.issuer.Issue(username)
	if err != nil {
		logging.Err(err).Str("username", username).Msg("token issuance failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	session, err := s.sessions.CreateSession(r.Context(), w, username, "session")
	if err != nil {
		logging.Err(err).Str("username", username).Msg("session creation failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logging.Info().
		Str("username", username).
		Str("role", session.Role).
		Msg("login session created")
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleLogout destroys the session, clears the cookie, and redirects
// to the landing page. Safe to call without a session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DestroySession(r.Context(), w, r); err != nil {
		logging.Err(err).Msg("logout failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleJWKS publishes the RS256 verification key. The test profile
// signs symmetrically and has no key set to publish.
func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	if s.jwks == nil {
		respondError(w, http.StatusNotFound, "no key set published")
		return
	}
	respondJSON(w, http.StatusOK, s.jwks.JWKS())
}

// handleOAuthLogin redirects the client to the provider's
// authorization endpoint with a fresh state.
func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		respondError(w, http.StatusServiceUnavailable, "oauth is not configured")
		return
	}

	url, err := s.oauth.BeginLogin()
	if err != nil {
		logging.Err(err).Msg("oauth login failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// handleOAuthCallback completes the code exchange, resolves the
// provider identity, creates a session, and redirects to /hello.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		respondError(w, http.StatusServiceUnavailable, "oauth is not configured")
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		logging.Warn().Str("error", errCode).Msg("oauth authorization denied")
		respondError(w, http.StatusForbidden, "authorization denied")
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		respondError(w, http.StatusUnauthorized, "missing state or code")
		return
	}

	info, err := s.oauth.CompleteLogin(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid oauth state")
		case errors.Is(err, auth.ErrAuthenticatorUnavailable):
			respondError(w, http.StatusServiceUnavailable, "authorization server unavailable")
		default:
			logging.Err(err).Msg("oauth callback failed")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if _, err := s.sessions.CreateSession(r.Context(), w, info.ID, "oauth"); err != nil {
		logging.Err(err).Msg("oauth session creation failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logging.Info().Str("subject", info.ID).Msg("oauth login completed")
	http.Redirect(w, r, "/hello", http.StatusFound)
}
