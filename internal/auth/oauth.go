// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/kteeth/kteeth/internal/logging"
	"github.com/kteeth/kteeth/internal/metrics"
)

// OAuth flow errors.
var (
	// ErrStateInvalid indicates an unknown, expired, or replayed state.
	ErrStateInvalid = fmt.Errorf("oauth state invalid: %w", ErrInvalidCredentials)
)

// stateStore tracks issued state nonces. Each state is single-use and
// expires after the configured TTL.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
}

func newStateStore(ttl time.Duration) *stateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &stateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// issue creates and records a new state nonce.
func (s *stateStore) issue() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("state generation failed: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(bytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic expiry sweep; the map only grows with abandoned
	// logins, so this stays small.
	now := time.Now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}

	s.states[state] = now.Add(s.ttl)
	return state, nil
}

// redeem consumes a state. A state can be redeemed exactly once.
func (s *stateStore) redeem(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Now().Before(exp)
}

// OAuthUserInfo is the identity returned by the provider's user-info
// endpoint after a successful code exchange.
type OAuthUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// OAuthBridgeConfig configures the bridge against one provider.
type OAuthBridgeConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	StateTTL     time.Duration
}

// OAuthBridge drives the authorization-code flow against an external
// provider. The user-info call runs behind a circuit breaker so a
// degraded provider fails fast instead of tying up handlers.
type OAuthBridge struct {
	oauth       *oauth2.Config
	userInfoURL string
	states      *stateStore
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*OAuthUserInfo]
}

// NewOAuthBridge creates the bridge. Scopes default to the provider's
// basic profile scope when empty.
func NewOAuthBridge(cfg OAuthBridgeConfig) *OAuthBridge {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/userinfo.profile"}
	}

	breaker := gobreaker.NewCircuitBreaker[*OAuthUserInfo](gobreaker.Settings{
		Name:        "oauth-userinfo",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &OAuthBridge{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		states:      newStateStore(cfg.StateTTL),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		breaker:     breaker,
	}
}

// BeginLogin issues a state and returns the provider URL to redirect
// the client to.
func (b *OAuthBridge) BeginLogin() (string, error) {
	state, err := b.states.issue()
	if err != nil {
		return "", err
	}
	return b.oauth.AuthCodeURL(state), nil
}

// CompleteLogin redeems the state, exchanges the code for a token, and
// resolves the provider identity.
func (b *OAuthBridge) CompleteLogin(ctx context.Context, state, code string) (*OAuthUserInfo, error) {
	if !b.states.redeem(state) {
		metrics.OAuthExchanges.WithLabelValues("denied").Inc()
		return nil, ErrStateInvalid
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	token, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		// A 4xx from the token endpoint means the provider rejected
		// the code (forged, expired, replayed): that is a denial, not
		// an outage.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			metrics.OAuthExchanges.WithLabelValues("denied").Inc()
			return nil, fmt.Errorf("%w: provider rejected code: %v", ErrInvalidCredentials, err)
		}
		metrics.OAuthExchanges.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: code exchange failed: %v", ErrAuthenticatorUnavailable, err)
	}

	info, err := b.breaker.Execute(func() (*OAuthUserInfo, error) {
		return b.fetchUserInfo(ctx, token)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.OAuthExchanges.WithLabelValues("breaker_open").Inc()
		} else {
			metrics.OAuthExchanges.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("%w: user info fetch failed: %v", ErrAuthenticatorUnavailable, err)
	}

	metrics.OAuthExchanges.WithLabelValues("success").Inc()
	return info, nil
}

// fetchUserInfo queries the provider's user-info endpoint with the
// access token.
func (b *OAuthBridge) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.userInfoURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("user info endpoint returned %d: %s", resp.StatusCode, body)
	}

	var info OAuthUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("user info missing subject id")
	}

	return &info, nil
}
