// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kteeth/kteeth/internal/auth"
	"github.com/kteeth/kteeth/internal/config"
	"github.com/kteeth/kteeth/internal/database"
	"github.com/kteeth/kteeth/internal/middleware"
)

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	gateway  *auth.Gateway
	sessions *auth.SessionManager
	issuer   auth.TokenIssuer
	jwks     *auth.RS256Issuer
	oauth    *auth.OAuthBridge
	db       *database.DB
	users    *database.UserRepository
	validate *validator.Validate
}

// ServerOptions carries the dependencies for NewServer. The JWKS
// issuer is nil in the test profile, the OAuth bridge is nil when no
// client credentials are configured, and the database may be nil when
// the pool could not be established (health then reports the error).
type ServerOptions struct {
	Config   *config.Config
	Gateway  *auth.Gateway
	Sessions *auth.SessionManager
	Issuer   auth.TokenIssuer
	JWKS     *auth.RS256Issuer
	OAuth    *auth.OAuthBridge
	DB       *database.DB
	Users    *database.UserRepository
}

// NewServer assembles the HTTP server.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		cfg:      opts.Config,
		gateway:  opts.Gateway,
		sessions: opts.Sessions,
		issuer:   opts.Issuer,
		jwks:     opts.JWKS,
		oauth:    opts.OAuth,
		db:       opts.DB,
		users:    opts.Users,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the chi router: ambient middleware first, then the
// public surface, then one route group per authentication scheme.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))

	// Public surface.
	r.Get("/", s.handleRoot)
	r.Get("/hello", s.handleHelloStream)
	r.Post("/loginSession", s.handleLoginSession)
	r.Get("/logout", s.handleLogout)
	r.Get("/health", s.handleHealth)
	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Handle("/metrics", promhttp.Handler())

	// OAuth bridge.
	r.Get("/login", s.handleOAuthLogin)
	r.Get("/callback", s.handleOAuthCallback)

	// Protected routes: exactly one scheme each.
	r.Group(func(r chi.Router) {
		r.Use(s.gateway.Require(auth.SchemeBasic))
		r.Get("/protected/route/basic", s.handleGreeting)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.gateway.Require(auth.SchemeForm))
		// GET reads the fields from the query string, POST from the body.
		r.Get("/protected/route/form", s.handleGreeting)
		r.Post("/protected/route/form", s.handleGreeting)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.gateway.Require(auth.SchemeJWT))
		r.Get("/protected/route/jwt", s.handleGreeting)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.gateway.Require(auth.SchemeSession))
		r.Get("/protected/route/session", s.handleGreeting)
	})

	// Users CRUD.
	r.Route("/users", func(r chi.Router) {
		r.Use(s.requireUsers)
		r.Post("/", s.handleUserCreate)
		r.Get("/", s.handleUserList)
		r.Get("/{id}", s.handleUserGet)
		r.Put("/{id}", s.handleUserUpdate)
		r.Delete("/{id}", s.handleUserDelete)
	})

	return r
}
