// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/protected/route/form", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestFormAuthenticator(t *testing.T) {
	authenticator := NewFormAuthenticator(newTestChecker(t))

	tests := []struct {
		name    string
		values  url.Values
		wantErr error
	}{
		{
			name:    "valid credentials",
			values:  url.Values{FormUserField: {"ddd"}, FormPasswordField: {"ddd"}},
			wantErr: nil,
		},
		{
			name:    "empty form",
			values:  url.Values{},
			wantErr: ErrNoCredentials,
		},
		{
			name:    "wrong password",
			values:  url.Values{FormUserField: {"ddd"}, FormPasswordField: {"bad"}},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "missing password",
			values:  url.Values{FormUserField: {"ddd"}},
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := authenticator.Authenticate(context.Background(), formRequest(tt.values))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Authenticate() unexpected error: %v", err)
			}
			if principal.Username != "ddd" {
				t.Errorf("Username = %q, want ddd", principal.Username)
			}
			if principal.Scheme != SchemeForm {
				t.Errorf("Scheme = %q, want %q", principal.Scheme, SchemeForm)
			}
		})
	}
}

func TestFormChallengeHasNoNegotiationHeader(t *testing.T) {
	authenticator := NewFormAuthenticator(newTestChecker(t))

	rec := httptest.NewRecorder()
	authenticator.Challenge(rec)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if header := rec.Header().Get("WWW-Authenticate"); header != "" {
		t.Errorf("unexpected WWW-Authenticate header: %q", header)
	}
}
