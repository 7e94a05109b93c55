// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kteeth/kteeth/internal/logging"
)

// SessionChallengeBody is the fixed 401 body for requests without a
// valid session.
const SessionChallengeBody = "Please login first."

// SessionManager owns the session cookie contract: it creates sessions
// in the store, sets and clears the cookie, and resolves cookies back
// to sessions.
type SessionManager struct {
	store      SessionStore
	cookieName string
	ttl        time.Duration
	secure     bool
	security   *logging.SecurityLogger
}

// NewSessionManager creates a manager writing cookies named cookieName
// with the given session lifetime.
func NewSessionManager(store SessionStore, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = "MY_SESSION"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		security:   logging.NewSecurityLogger(),
	}
}

// CreateSession stores a new session for userID and sets the cookie.
// The role is derived from the user ID at creation and never changes.
func (m *SessionManager) CreateSession(ctx context.Context, w http.ResponseWriter, userID, provider string) (*Session, error) {
	session := NewSession(userID, provider, m.ttl)
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	m.security.LogSessionCreated(userID, session.ID, provider)
	return session, nil
}

// Resolve looks up the session referenced by the request cookie.
func (m *SessionManager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoCredentials
	}

	session, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return nil, ErrInvalidCredentials
		case errors.Is(err, ErrSessionExpired):
			return nil, ErrExpiredCredentials
		default:
			return nil, err
		}
	}

	// Sliding expiry; failures here never fail the request.
	if err := m.store.Touch(ctx, session.ID, m.ttl); err != nil {
		logging.Debug().Err(err).Msg("session touch failed")
	}

	return session, nil
}

// DestroySession deletes the session and expires the cookie.
func (m *SessionManager) DestroySession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(m.cookieName)
	if err == nil && cookie.Value != "" {
		if err := m.store.Delete(ctx, cookie.Value); err != nil {
			return err
		}
		m.security.LogLogout("", cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CookieName returns the configured cookie name.
func (m *SessionManager) CookieName() string { return m.cookieName }

// SessionAuthenticator validates the session cookie.
type SessionAuthenticator struct {
	manager *SessionManager
}

// NewSessionAuthenticator creates a cookie session authenticator.
func NewSessionAuthenticator(manager *SessionManager) *SessionAuthenticator {
	return &SessionAuthenticator{manager: manager}
}

// Authenticate resolves the session cookie to a principal.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	session, err := a.manager.Resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	return session.ToPrincipal(), nil
}

// Scheme returns SchemeSession.
func (a *SessionAuthenticator) Scheme() Scheme { return SchemeSession }

// Challenge writes the fixed session challenge.
func (a *SessionAuthenticator) Challenge(w http.ResponseWriter) {
	http.Error(w, SessionChallengeBody, http.StatusUnauthorized)
}
