// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package auth implements the authentication core of kteeth: credential
// validators (basic, form), JWT issuance and verification, cookie
// sessions with pluggable stores, the OAuth bridge, and the gateway
// that binds one scheme to each protected route group.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Scheme identifies an authentication scheme a route group can require.
type Scheme string

const (
	// SchemeBasic validates credentials from the Authorization header.
	SchemeBasic Scheme = "basic"

	// SchemeForm validates credentials from POST form fields.
	SchemeForm Scheme = "form"

	// SchemeJWT validates a Bearer token.
	SchemeJWT Scheme = "jwt"

	// SchemeSession validates the session cookie.
	SchemeSession Scheme = "session"

	// SchemeOAuth delegates to the external authorization server.
	SchemeOAuth Scheme = "oauth"
)

// ParseScheme converts a string to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "basic":
		return SchemeBasic, nil
	case "form":
		return SchemeForm, nil
	case "jwt":
		return SchemeJWT, nil
	case "session":
		return SchemeSession, nil
	case "oauth":
		return SchemeOAuth, nil
	default:
		return "", errors.New("invalid auth scheme: " + s)
	}
}

func (s Scheme) String() string { return string(s) }

// Roles assigned to principals.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Standard authentication errors. Authenticators return these sentinels
// so the gateway can map them to consistent HTTP responses.
var (
	// ErrNoCredentials indicates the request carried no credentials.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were present but wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials were valid but expired.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrAuthenticatorUnavailable indicates a required upstream
	// (JWKS endpoint, OAuth provider) is unreachable.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
)

// Authenticator validates one credential scheme.
type Authenticator interface {
	// Authenticate extracts and validates credentials from the request.
	// Returns a Principal on success; one of the sentinel errors above
	// on failure.
	Authenticate(ctx context.Context, r *http.Request) (*Principal, error)

	// Scheme returns the scheme this authenticator handles.
	Scheme() Scheme

	// Challenge writes the scheme's 401 response: the challenge header
	// and body a client needs to retry with credentials.
	Challenge(w http.ResponseWriter)
}

// Principal is an authenticated identity, normalized across schemes.
type Principal struct {
	// ID is the unique identifier: the username for basic and form,
	// the username claim for JWT, the user ID for sessions and OAuth.
	ID string `json:"id"`

	// Username is the human-readable name.
	Username string `json:"username"`

	// Email is set when the scheme provides one (OAuth user info).
	Email string `json:"email,omitempty"`

	// Role is the assigned role, RoleAdmin or RoleUser.
	Role string `json:"role,omitempty"`

	// Scheme records how this principal authenticated.
	Scheme Scheme `json:"scheme"`

	// SessionID is set when the principal came from a session cookie.
	SessionID string `json:"session_id,omitempty"`

	// IssuedAt and ExpiresAt are Unix seconds when the backing
	// credential carries them (JWT, session).
	IssuedAt  int64 `json:"issued_at,omitempty"`
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Expired reports whether the principal's credential has expired.
// A zero ExpiresAt means no expiry.
func (p *Principal) Expired() bool {
	if p.ExpiresAt == 0 {
		return false
	}
	return time.Now().Unix() > p.ExpiresAt
}

// RoleForUserID derives the role granted at session creation:
// the "admin" user ID gets RoleAdmin, everyone else RoleUser.
func RoleForUserID(userID string) string {
	if userID == "admin" {
		return RoleAdmin
	}
	return RoleUser
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, or nil if
// the request did not pass through a gateway middleware.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
