// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kteeth/kteeth/internal/metrics"
)

// Claims is the kteeth JWT payload: the username claim plus the
// registered set (aud, iss, exp, iat).
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs short-lived JWTs carrying a username claim.
type TokenIssuer interface {
	// Issue signs a token for username with the configured TTL.
	Issue(username string) (string, error)

	// Algorithm returns the JWT "alg" value this issuer signs with.
	Algorithm() string
}

// IssuerOptions carries the claims configuration shared by both
// signing profiles.
type IssuerOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
}

func (o IssuerOptions) claims(username string, now time.Time) Claims {
	return Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    o.Issuer,
			Audience:  jwt.ClaimStrings{o.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.TTL)),
		},
	}
}

// RS256Issuer signs tokens with an RSA private key and stamps the
// configured key ID into the token header so verifiers can resolve the
// matching JWKS entry.
type RS256Issuer struct {
	key  *rsa.PrivateKey
	kid  string
	opts IssuerOptions
}

// NewRS256Issuer parses a base64-encoded PKCS#8 RSA private key.
// Key material problems are startup failures; nothing is deferred to
// the first Issue call.
func NewRS256Issuer(privateKeyB64, kid string, opts IssuerOptions) (*RS256Issuer, error) {
	der, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("private key is not valid base64: %w", err)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("private key is not valid PKCS#8: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA (got %T)", parsed)
	}

	return &RS256Issuer{key: rsaKey, kid: kid, opts: opts}, nil
}

// Issue signs an RS256 token for username.
func (i *RS256Issuer) Issue(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, i.opts.claims(username, time.Now()))
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	metrics.TokensIssued.WithLabelValues("RS256").Inc()
	return signed, nil
}

// Algorithm returns "RS256".
func (i *RS256Issuer) Algorithm() string { return "RS256" }

// KeyID returns the JWKS key ID stamped into issued tokens.
func (i *RS256Issuer) KeyID() string { return i.kid }

// PublicKey returns the RSA public half, used to publish the JWKS
// document and to verify locally in tests.
func (i *RS256Issuer) PublicKey() *rsa.PublicKey { return &i.key.PublicKey }

// JWKS renders the public key as a JWKS document for the
// /.well-known/jwks.json endpoint.
func (i *RS256Issuer) JWKS() map[string]any {
	pub := i.PublicKey()
	return map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": i.kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
}

// HS256Issuer signs tokens with a shared secret. Used by the test
// profile where no RSA key pair is provisioned.
type HS256Issuer struct {
	secret []byte
	opts   IssuerOptions
}

// NewHS256Issuer creates an HMAC issuer from the shared secret.
func NewHS256Issuer(secret string, opts IssuerOptions) (*HS256Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("HS256 issuer requires a non-empty secret")
	}
	return &HS256Issuer{secret: []byte(secret), opts: opts}, nil
}

// Issue signs an HS256 token for username.
func (i *HS256Issuer) Issue(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, i.opts.claims(username, time.Now()))

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	metrics.TokensIssued.WithLabelValues("HS256").Inc()
	return signed, nil
}

// Algorithm returns "HS256".
func (i *HS256Issuer) Algorithm() string { return "HS256" }
