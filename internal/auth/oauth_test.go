// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider stands in for the authorization server: a token endpoint
// and a user-info endpoint.
func fakeProvider(t *testing.T, userInfoStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if userInfoStatus != http.StatusOK {
			w.WriteHeader(userInfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OAuthUserInfo{
			ID:    "108123456789",
			Email: "user@example.com",
			Name:  "Example User",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testBridge(t *testing.T, provider *httptest.Server) *OAuthBridge {
	t.Helper()
	return NewOAuthBridge(OAuthBridgeConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      provider.URL + "/auth",
		TokenURL:     provider.URL + "/token",
		UserInfoURL:  provider.URL + "/userinfo",
		RedirectURL:  "http://localhost:8080/callback",
		StateTTL:     time.Minute,
	})
}

func TestBeginLoginIssuesState(t *testing.T) {
	provider := fakeProvider(t, http.StatusOK)
	bridge := testBridge(t, provider)

	url1, err := bridge.BeginLogin()
	require.NoError(t, err)
	url2, err := bridge.BeginLogin()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url1, provider.URL+"/auth"))
	assert.Contains(t, url1, "state=")
	assert.Contains(t, url1, "client_id=client-id")
	assert.NotEqual(t, url1, url2, "each login must get a fresh state")
}

func TestCompleteLoginHappyPath(t *testing.T) {
	provider := fakeProvider(t, http.StatusOK)
	bridge := testBridge(t, provider)

	loginURL, err := bridge.BeginLogin()
	require.NoError(t, err)
	state := stateFromURL(t, loginURL)

	info, err := bridge.CompleteLogin(context.Background(), state, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "108123456789", info.ID)
	assert.Equal(t, "user@example.com", info.Email)
}

func TestCompleteLoginRejectsUnknownState(t *testing.T) {
	provider := fakeProvider(t, http.StatusOK)
	bridge := testBridge(t, provider)

	_, err := bridge.CompleteLogin(context.Background(), "never-issued", "auth-code")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCompleteLoginStateIsSingleUse(t *testing.T) {
	provider := fakeProvider(t, http.StatusOK)
	bridge := testBridge(t, provider)

	loginURL, err := bridge.BeginLogin()
	require.NoError(t, err)
	state := stateFromURL(t, loginURL)

	_, err = bridge.CompleteLogin(context.Background(), state, "auth-code")
	require.NoError(t, err)

	_, err = bridge.CompleteLogin(context.Background(), state, "auth-code")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "replayed state must be rejected")
}

func TestCompleteLoginExpiredState(t *testing.T) {
	provider := fakeProvider(t, http.StatusOK)
	bridge := NewOAuthBridge(OAuthBridgeConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      provider.URL + "/auth",
		TokenURL:     provider.URL + "/token",
		UserInfoURL:  provider.URL + "/userinfo",
		RedirectURL:  "http://localhost:8080/callback",
		StateTTL:     time.Millisecond,
	})

	loginURL, err := bridge.BeginLogin()
	require.NoError(t, err)
	state := stateFromURL(t, loginURL)

	time.Sleep(5 * time.Millisecond)
	_, err = bridge.CompleteLogin(context.Background(), state, "auth-code")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCompleteLoginUserInfoFailure(t *testing.T) {
	provider := fakeProvider(t, http.StatusInternalServerError)
	bridge := testBridge(t, provider)

	loginURL, err := bridge.BeginLogin()
	require.NoError(t, err)
	state := stateFromURL(t, loginURL)

	_, err = bridge.CompleteLogin(context.Background(), state, "auth-code")
	assert.ErrorIs(t, err, ErrAuthenticatorUnavailable)
}

func TestCompleteLoginExchangeFailures(t *testing.T) {
	tests := []struct {
		name        string
		tokenStatus int
		wantErr     error
	}{
		{"provider rejects the code", http.StatusBadRequest, ErrInvalidCredentials},
		{"provider denies the client", http.StatusUnauthorized, ErrInvalidCredentials},
		{"provider outage", http.StatusInternalServerError, ErrAuthenticatorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.tokenStatus)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			}))
			defer srv.Close()

			bridge := testBridge(t, srv)
			loginURL, err := bridge.BeginLogin()
			require.NoError(t, err)

			_, err = bridge.CompleteLogin(context.Background(), stateFromURL(t, loginURL), "bad-code")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	idx := strings.Index(raw, "state=")
	require.Positive(t, idx)
	state := raw[idx+len("state="):]
	if amp := strings.IndexByte(state, '&'); amp >= 0 {
		state = state[:amp]
	}
	return state
}
