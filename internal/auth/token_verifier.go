// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kteeth/kteeth/internal/logging"
	"github.com/kteeth/kteeth/internal/metrics"
)

// TokenChallengeBody is the fixed 401 body for rejected tokens. The
// same message covers every failure mode so the response does not leak
// why a token was refused.
const TokenChallengeBody = "Token is not valid or has expired"

// VerifyLeeway absorbs clock skew between issuer and verifier when
// checking exp and iat.
const VerifyLeeway = 3 * time.Second

// TokenVerifier validates JWTs: signature, audience, issuer, expiry
// with leeway, and a non-empty username claim.
type TokenVerifier struct {
	issuer   string
	audience string
	keyfunc  jwt.Keyfunc
	methods  []string
}

// NewJWKSVerifier builds a verifier that resolves RS256 keys through
// the JWKS cache by the token header's kid.
func NewJWKSVerifier(cache *JWKSCache, issuer, audience string) *TokenVerifier {
	keyfunc := func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		// Bounded: the cache serves from memory except on refresh.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cache.GetKey(ctx, kid)
	}

	return &TokenVerifier{
		issuer:   issuer,
		audience: audience,
		keyfunc:  keyfunc,
		methods:  []string{"RS256"},
	}
}

// NewSecretVerifier builds an HS256 verifier around the shared secret.
func NewSecretVerifier(secret, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{
		issuer:   issuer,
		audience: audience,
		keyfunc:  func(*jwt.Token) (any, error) { return []byte(secret), nil },
		methods:  []string{"HS256"},
	}
}

// Verify parses and validates tokenString, returning its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(VerifyLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			metrics.TokenVerifications.WithLabelValues("expired").Inc()
			return nil, ErrExpiredCredentials
		case errors.Is(err, ErrAuthenticatorUnavailable):
			return nil, err
		default:
			metrics.TokenVerifications.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}

	if !token.Valid || claims.Username == "" {
		metrics.TokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	metrics.TokenVerifications.WithLabelValues("valid").Inc()
	return claims, nil
}

// JWTAuthenticator validates Bearer tokens from the Authorization
// header.
type JWTAuthenticator struct {
	verifier *TokenVerifier
	realm    string
}

// NewJWTAuthenticator creates a Bearer token authenticator.
func NewJWTAuthenticator(verifier *TokenVerifier, realm string) *JWTAuthenticator {
	return &JWTAuthenticator{verifier: verifier, realm: realm}
}

// Authenticate validates the Bearer token and maps its claims to a
// principal.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		metrics.RecordAuthAttempt(string(SchemeJWT), "no_credentials")
		return nil, ErrNoCredentials
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		metrics.RecordAuthAttempt(string(SchemeJWT), "failure")
		return nil, ErrInvalidCredentials
	}

	claims, err := a.verifier.Verify(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		metrics.RecordAuthAttempt(string(SchemeJWT), "failure")
		// A live key-set fetch failure is a verification failure: the
		// client gets the fixed 401 body, not a 503.
		if errors.Is(err, ErrAuthenticatorUnavailable) {
			logging.Err(err).Msg("key set unavailable, rejecting token")
			return nil, fmt.Errorf("%w: key set unavailable", ErrInvalidCredentials)
		}
		return nil, err
	}

	metrics.RecordAuthAttempt(string(SchemeJWT), "success")
	p := &Principal{
		ID:       claims.Username,
		Username: claims.Username,
		Role:     RoleForUserID(claims.Username),
		Scheme:   SchemeJWT,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return p, nil
}

// Scheme returns SchemeJWT.
func (a *JWTAuthenticator) Scheme() Scheme { return SchemeJWT }

// Challenge writes the Bearer challenge with the fixed body.
func (a *JWTAuthenticator) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", a.realm))
	http.Error(w, TokenChallengeBody, http.StatusUnauthorized)
}
