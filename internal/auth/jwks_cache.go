// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/kteeth/kteeth/internal/metrics"
)

// JWKSCache caches the verification keys fetched from a JWKS endpoint.
// Fetches are rate-limited and cached entries are served stale when the
// endpoint is unreachable, so a flapping key server does not take token
// verification down with it. Thread-safe.
type JWKSCache struct {
	uri        string
	httpClient *http.Client
	ttl        time.Duration
	maxAge     time.Duration
	limiter    *rate.Limiter

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// JWKSCacheOptions tunes the cache.
type JWKSCacheOptions struct {
	// TTL is how long a fetch stays fresh. Default 15 minutes.
	TTL time.Duration

	// MaxAge is the hard ceiling on serving cached keys without a
	// successful refresh. Default 24 hours.
	MaxAge time.Duration

	// FetchesPerMinute caps endpoint hits. Default 10.
	FetchesPerMinute int

	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client
}

// NewJWKSCache creates a cache for the JWKS document at uri.
func NewJWKSCache(uri string, opts JWKSCacheOptions) *JWKSCache {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.TTL == 0 {
		opts.TTL = 15 * time.Minute
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.FetchesPerMinute == 0 {
		opts.FetchesPerMinute = 10
	}

	return &JWKSCache{
		uri:        uri,
		httpClient: opts.HTTPClient,
		ttl:        opts.TTL,
		maxAge:     opts.MaxAge,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.FetchesPerMinute)), opts.FetchesPerMinute),
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the public key for kid, refreshing the cache when the
// entry is stale or missing.
func (c *JWKSCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	age := time.Since(c.fetched)
	c.mu.RUnlock()

	if ok && age < c.ttl {
		return key, nil
	}

	keys, err := c.refreshKeys(ctx)
	if err != nil {
		// Serve the stale key while the endpoint is down, up to the
		// hard age ceiling.
		if ok && age < c.maxAge {
			metrics.JWKSRefreshes.WithLabelValues("stale_served").Inc()
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthenticatorUnavailable, err)
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("jwks key not found: %s", kid)
	}

	return key, nil
}

// refreshKeys fetches the JWKS document, honoring the rate limit.
func (c *JWKSCache) refreshKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited on the lock.
	if time.Since(c.fetched) < c.ttl && len(c.keys) > 0 {
		return c.keys, nil
	}

	if !c.limiter.Allow() {
		metrics.JWKSRefreshes.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("jwks fetch rate limit exceeded")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.JWKSRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.JWKSRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("jwks fetch failed with status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		metrics.JWKSRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}

		nBytes, err := base64URLDecode(key.N)
		if err != nil {
			continue
		}
		eBytes, err := base64URLDecode(key.E)
		if err != nil {
			continue
		}

		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}

		keys[key.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: e,
		}
	}

	c.keys = keys
	c.fetched = time.Now()
	metrics.JWKSRefreshes.WithLabelValues("success").Inc()
	return c.keys, nil
}

// base64URLDecode decodes base64url with or without padding.
func base64URLDecode(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}

// URI returns the JWKS endpoint.
func (c *JWKSCache) URI() string { return c.uri }
