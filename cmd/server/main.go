// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package main is the entry point for the kteeth server.
//
// kteeth is a small authentication backend that demonstrates four HTTP
// authentication schemes against one credential source: HTTP basic,
// posted form fields, bearer JWTs, and cookie sessions, plus an OAuth
// authorization-code bridge that provisions sessions from an external
// provider.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and an
//     optional config file (Koanf v2)
//  2. Logging: global zerolog logger (json or console)
//  3. Database: MySQL pool for the users table; startup tolerates an
//     unreachable database and /health reports the failure
//  4. Sessions: memory or BadgerDB store plus the cookie manager and
//     a background expiry sweep
//  5. Tokens: RS256 issuer with a published JWKS (production profile)
//     or an HS256 issuer with a shared secret (test profile)
//  6. Gateway: one authenticator per scheme, wired immutably
//  7. OAuth bridge: enabled when client credentials are configured
//  8. HTTP server: chi router with the public and protected surface
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (e.g. DB_HOST, JWT_PRIVATE_KEY, PROFILE)
//   - Config file (CONFIG_PATH or config.yaml)
//   - Built-in defaults
//
// For the production profile:
//   - JWT_PRIVATE_KEY: base64-encoded PKCS#8 RSA private key
//   - JWT_KEY_ID: key ID published in the JWKS document
//
// For OAuth:
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests up to the
// configured shutdown timeout, then closes the session store and the
// database pool.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kteeth/kteeth/internal/api"
	"github.com/kteeth/kteeth/internal/auth"
	"github.com/kteeth/kteeth/internal/config"
	"github.com/kteeth/kteeth/internal/database"
	"github.com/kteeth/kteeth/internal/logging"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuration failed")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("profile", cfg.Profile).
		Str("addr", cfg.Server.Addr()).
		Msg("starting kteeth")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The database is best-effort at startup: the auth surface works
	// without it and /health reports the degraded state.
	var db *database.DB
	var users *database.UserRepository
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logging.Err(err).Msg("database unavailable, continuing degraded")
	} else {
		db = pool
		defer func() { _ = db.Close() }()

		if err := database.NewUserRepository(db.Pool()).EnsureSchema(ctx); err != nil {
			logging.Err(err).Msg("schema migration failed")
		}
		users = database.NewUserRepository(db.Pool())
	}

	store, err := auth.NewSessionStore(cfg.Security.SessionStore, cfg.Security.SessionStorePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessions := auth.NewSessionManager(store, cfg.Security.SessionCookie,
		cfg.Security.SessionTTL, cfg.Security.CookieSecure)
	auth.StartSessionCleanup(ctx, store, cfg.Security.SessionTTL/4)

	checker, err := auth.NewCredentialChecker(cfg.Security.BasicUsername, cfg.Security.BasicPassword)
	if err != nil {
		return err
	}

	issuerOpts := auth.IssuerOptions{
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}

	var issuer auth.TokenIssuer
	var jwksIssuer *auth.RS256Issuer
	var verifier *auth.TokenVerifier
	if cfg.Profile == config.ProfileProduction {
		rs256, err := auth.NewRS256Issuer(cfg.JWT.PrivateKey, cfg.JWT.KeyID, issuerOpts)
		if err != nil {
			return err
		}
		issuer = rs256
		jwksIssuer = rs256

		cache := auth.NewJWKSCache(cfg.JWT.JWKSURL, auth.JWKSCacheOptions{})
		verifier = auth.NewJWKSVerifier(cache, cfg.JWT.Issuer, cfg.JWT.Audience)
	} else {
		hs256, err := auth.NewHS256Issuer(cfg.JWT.Secret, issuerOpts)
		if err != nil {
			return err
		}
		issuer = hs256
		verifier = auth.NewSecretVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	}

	gateway, err := auth.NewGateway(
		auth.NewBasicAuthenticator(checker, cfg.Security.BasicRealm),
		auth.NewFormAuthenticator(checker),
		auth.NewJWTAuthenticator(verifier, cfg.JWT.Realm),
		auth.NewSessionAuthenticator(sessions),
	)
	if err != nil {
		return err
	}

	var bridge *auth.OAuthBridge
	if cfg.OAuth.Enabled() {
		bridge = auth.NewOAuthBridge(auth.OAuthBridgeConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.profile"},
			StateTTL:     cfg.OAuth.StateTTL,
		})
		logging.Info().Msg("oauth bridge enabled")
	}

	server := api.NewServer(api.ServerOptions{
		Config:   cfg,
		Gateway:  gateway,
		Sessions: sessions,
		Issuer:   issuer,
		JWKS:     jwksIssuer,
		OAuth:    bridge,
		DB:       db,
		Users:    users,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("shutdown incomplete, closing")
		_ = httpServer.Close()
	}
	return nil
}
