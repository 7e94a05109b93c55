// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"net/http"

	"github.com/kteeth/kteeth/internal/metrics"
)

// Form field names the validator reads credentials from.
const (
	FormUserField     = "user"
	FormPasswordField = "password"
)

// FormAuthenticator validates credentials posted as form fields.
// It shares the CredentialChecker with the basic scheme, so both
// accept the same account.
type FormAuthenticator struct {
	checker *CredentialChecker
}

// NewFormAuthenticator creates a form authenticator around checker.
func NewFormAuthenticator(checker *CredentialChecker) *FormAuthenticator {
	return &FormAuthenticator{checker: checker}
}

// Authenticate reads the user and password form fields. Missing fields
// are reported as ErrNoCredentials, wrong values as
// ErrInvalidCredentials.
func (a *FormAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Principal, error) {
	if err := r.ParseForm(); err != nil {
		metrics.RecordAuthAttempt(string(SchemeForm), "no_credentials")
		return nil, ErrNoCredentials
	}

	username := r.FormValue(FormUserField)
	password := r.FormValue(FormPasswordField)
	if username == "" && password == "" {
		metrics.RecordAuthAttempt(string(SchemeForm), "no_credentials")
		return nil, ErrNoCredentials
	}

	if !a.checker.Check(username, password) {
		metrics.RecordAuthAttempt(string(SchemeForm), "failure")
		return nil, ErrInvalidCredentials
	}

	metrics.RecordAuthAttempt(string(SchemeForm), "success")
	return &Principal{
		ID:       username,
		Username: username,
		Role:     RoleForUserID(username),
		Scheme:   SchemeForm,
	}, nil
}

// Scheme returns SchemeForm.
func (a *FormAuthenticator) Scheme() Scheme { return SchemeForm }

// Challenge rejects the request without a scheme-specific header;
// form credentials are resubmitted by the client, not negotiated.
func (a *FormAuthenticator) Challenge(w http.ResponseWriter) {
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
