// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package config defines the kteeth configuration surface and its
// layered loader (defaults, optional YAML file, environment variables).
package config

import (
	"fmt"
	"time"
)

// Profile selects the signing and storage posture of the server.
//
//   - ProfileProduction: RS256 token signing, JWKS verification, MySQL pool.
//   - ProfileTest: HS256 token signing with a shared secret, in-memory stores.
const (
	ProfileProduction = "production"
	ProfileTest       = "test"
)

// Config is the root configuration for the kteeth server.
type Config struct {
	// Profile selects production or test behavior.
	Profile string `koanf:"profile" validate:"oneof=production test"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	JWT      JWTConfig      `koanf:"jwt"`
	OAuth    OAuthConfig    `koanf:"oauth"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds MySQL connection and pool settings.
type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	Name     string `koanf:"name" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`

	// Pool settings surfaced by the health endpoint.
	MaxPoolSize     int           `koanf:"max_pool_size" validate:"min=1"`
	MinIdle         int           `koanf:"min_idle" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnTimeout     time.Duration `koanf:"conn_timeout"`
}

// DSN returns the go-sql-driver/mysql data source name.
// clientFoundRows makes UPDATE report matched rows rather than changed
// rows, so a no-op update of an existing row is not mistaken for a
// missing one.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true&timeout=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.ConnTimeout)
}

// JWTConfig holds token issuance and verification settings.
type JWTConfig struct {
	// PrivateKey is the base64-encoded PKCS#8 RSA private key used for
	// RS256 signing in the production profile.
	PrivateKey string `koanf:"private_key"`

	// Secret is the HS256 shared secret used in the test profile.
	Secret string `koanf:"secret"`

	// KeyID is published as the JWKS "kid" and stamped into token headers.
	KeyID string `koanf:"key_id"`

	Issuer   string `koanf:"issuer" validate:"required"`
	Audience string `koanf:"audience" validate:"required"`
	Realm    string `koanf:"realm"`

	// TTL is the token lifetime.
	TTL time.Duration `koanf:"ttl" validate:"min=1s"`

	// JWKSURL is the endpoint verified RS256 keys are fetched from.
	// Defaults to the server's own /.well-known/jwks.json.
	JWKSURL string `koanf:"jwks_url"`
}

// OAuthConfig holds the external authorization provider settings.
// Defaults target Google; ClientID and ClientSecret come from the
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables.
type OAuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`
	UserInfoURL  string `koanf:"user_info_url"`
	RedirectURL  string `koanf:"redirect_url"`

	// StateTTL bounds how long an issued state nonce stays redeemable.
	StateTTL time.Duration `koanf:"state_ttl"`
}

// Enabled reports whether the OAuth bridge has credentials to run with.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SecurityConfig holds credential and session settings.
type SecurityConfig struct {
	// BasicUsername and BasicPassword are the credentials accepted by the
	// basic and form validators. The password is bcrypt-hashed at startup
	// and the plaintext is discarded.
	BasicUsername string `koanf:"basic_username" validate:"required"`
	BasicPassword string `koanf:"basic_password" validate:"required"`

	// BasicRealm is presented in the WWW-Authenticate challenge.
	BasicRealm string `koanf:"basic_realm"`

	// SessionCookie is the session cookie name.
	SessionCookie string `koanf:"session_cookie" validate:"required"`

	// SessionTTL bounds session lifetime in the store and the cookie.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"min=1m"`

	// SessionStore selects the store backend: memory or badger.
	SessionStore string `koanf:"session_store" validate:"oneof=memory badger"`

	// SessionStorePath is the on-disk location for the badger backend.
	SessionStorePath string `koanf:"session_store_path"`

	// CookieSecure marks the session cookie Secure. Off by default so
	// local plain-HTTP deployments keep working.
	CookieSecure bool `koanf:"cookie_secure"`

	// RateLimitReqs and RateLimitWindow bound requests per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults
// describe the test profile; production deployments override profile,
// jwt.private_key, and the database credentials.
func defaultConfig() *Config {
	return &Config{
		Profile: ProfileTest,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            3306,
			Name:            "kteeth",
			User:            "root",
			Password:        "root",
			MaxPoolSize:     10,
			MinIdle:         2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnTimeout:     5 * time.Second,
		},
		JWT: JWTConfig{
			PrivateKey: "",
			Secret:     "secret",
			KeyID:      "6f8856ed-9189-488f-9011-0ff4b6c08edc",
			Issuer:     "http://0.0.0.0:8080/",
			Audience:   "jwt-audience",
			Realm:      "Access to protected routes",
			TTL:        60 * time.Second,
			JWKSURL:    "http://0.0.0.0:8080/.well-known/jwks.json",
		},
		OAuth: OAuthConfig{
			ClientID:     "",
			ClientSecret: "",
			AuthURL:      "https://accounts.google.com/o/oauth2/auth",
			TokenURL:     "https://accounts.google.com/o/oauth2/token",
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			RedirectURL:  "http://localhost:8080/callback",
			StateTTL:     10 * time.Minute,
		},
		Security: SecurityConfig{
			BasicUsername:    "ddd",
			BasicPassword:    "ddd",
			BasicRealm:       "kteeth server",
			SessionCookie:    "MY_SESSION",
			SessionTTL:       24 * time.Hour,
			SessionStore:     "memory",
			SessionStorePath: "/data/sessions",
			RateLimitReqs:    100,
			RateLimitWindow:  time.Minute,
			CORSOrigins:      []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
