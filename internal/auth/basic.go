// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/kteeth/kteeth/internal/metrics"
)

// CredentialChecker validates a username/password pair against the
// single configured account. The password is bcrypt-hashed once at
// construction so the plaintext never outlives startup.
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker hashes the configured password and returns a
// checker. Fails only if bcrypt rejects the password (over 72 bytes).
func NewCredentialChecker(username, password string) (*CredentialChecker, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("credential checker requires a username and password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &CredentialChecker{
		username:     username,
		passwordHash: hash,
	}, nil
}

// Check validates the pair in constant time with respect to the
// username and via bcrypt for the password.
func (c *CredentialChecker) Check(username, password string) bool {
	// Hash both usernames so the comparison length is fixed.
	givenUser := sha256.Sum256([]byte(username))
	wantUser := sha256.Sum256([]byte(c.username))
	userOK := subtle.ConstantTimeCompare(givenUser[:], wantUser[:]) == 1

	passOK := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil

	return userOK && passOK
}

// BasicAuthenticator validates credentials from the Authorization
// header using the Basic scheme.
type BasicAuthenticator struct {
	checker *CredentialChecker
	realm   string
}

// NewBasicAuthenticator creates a Basic authenticator around checker.
func NewBasicAuthenticator(checker *CredentialChecker, realm string) *BasicAuthenticator {
	if realm == "" {
		realm = "restricted"
	}
	return &BasicAuthenticator{checker: checker, realm: realm}
}

// Authenticate validates the Authorization: Basic header.
func (a *BasicAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Principal, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		metrics.RecordAuthAttempt(string(SchemeBasic), "no_credentials")
		return nil, ErrNoCredentials
	}

	if !a.checker.Check(username, password) {
		metrics.RecordAuthAttempt(string(SchemeBasic), "failure")
		return nil, ErrInvalidCredentials
	}

	metrics.RecordAuthAttempt(string(SchemeBasic), "success")
	return &Principal{
		ID:       username,
		Username: username,
		Role:     RoleForUserID(username),
		Scheme:   SchemeBasic,
	}, nil
}

// Scheme returns SchemeBasic.
func (a *BasicAuthenticator) Scheme() Scheme { return SchemeBasic }

// Challenge writes the Basic WWW-Authenticate challenge.
func (a *BasicAuthenticator) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", a.realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
