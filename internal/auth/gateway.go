// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kteeth/kteeth/internal/logging"
)

// Gateway binds authenticators to routes. The scheme set is fixed at
// construction; route groups request exactly one scheme each, so a
// request is only ever judged by a single authenticator.
type Gateway struct {
	authenticators map[Scheme]Authenticator
	security       *logging.SecurityLogger
}

// NewGateway builds a gateway over the given authenticators.
// Registering the same scheme twice is a programming error.
func NewGateway(authenticators ...Authenticator) (*Gateway, error) {
	m := make(map[Scheme]Authenticator, len(authenticators))
	for _, a := range authenticators {
		if _, dup := m[a.Scheme()]; dup {
			return nil, fmt.Errorf("duplicate authenticator for scheme %q", a.Scheme())
		}
		m[a.Scheme()] = a
	}
	return &Gateway{
		authenticators: m,
		security:       logging.NewSecurityLogger(),
	}, nil
}

// Authenticator returns the authenticator for scheme, or nil.
func (g *Gateway) Authenticator(scheme Scheme) Authenticator {
	return g.authenticators[scheme]
}

// Require returns middleware enforcing the named scheme. On success the
// principal is stored in the request context; on failure the scheme's
// challenge is written. A scheme with no registered authenticator
// always responds 503, surfacing the wiring mistake loudly.
func (g *Gateway) Require(scheme Scheme) func(http.Handler) http.Handler {
	authenticator := g.authenticators[scheme]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticator == nil {
				logging.Error().Str("scheme", scheme.String()).Msg("no authenticator registered for required scheme")
				http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), r)
			if err != nil {
				g.reject(w, r, authenticator, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware enforcing a role on top of an already
// authenticated request. It must run after Require.
func (g *Gateway) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if principal.Role != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reject maps authentication errors to HTTP responses. Credential
// problems get the scheme's challenge; infrastructure problems get 503.
func (g *Gateway) reject(w http.ResponseWriter, r *http.Request, a Authenticator, err error) {
	switch {
	case errors.Is(err, ErrNoCredentials),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrExpiredCredentials):
		g.security.LogLoginFailure(a.Scheme().String(), r.RemoteAddr, err.Error())
		a.Challenge(w)

	case errors.Is(err, ErrAuthenticatorUnavailable):
		logging.Err(err).
			Str("scheme", a.Scheme().String()).
			Msg("authenticator unavailable")
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)

	default:
		logging.Err(err).
			Str("scheme", a.Scheme().String()).
			Msg("authentication error")
		a.Challenge(w)
	}
}
