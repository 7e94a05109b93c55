// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/kteeth/kteeth/internal/logging"
	"github.com/kteeth/kteeth/internal/metrics"
)

// Session-related errors.
var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session exists but its
	// lifetime has passed.
	ErrSessionExpired = errors.New("session expired")
)

// Session is a server-side login record referenced by the session
// cookie. The role is fixed at creation from the user ID.
type Session struct {
	// ID is the opaque token stored in the cookie.
	ID string `json:"id"`

	// UserID identifies the logged-in user.
	UserID string `json:"user_id"`

	// Role is RoleAdmin or RoleUser, assigned at creation.
	Role string `json:"role"`

	// Provider records which scheme created the session: "form",
	// "session" login, or "oauth".
	Provider string `json:"provider,omitempty"`

	// Email is populated for OAuth-created sessions.
	Email string `json:"email,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// IsExpired reports whether the session lifetime has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ToPrincipal converts the session into an authenticated principal.
func (s *Session) ToPrincipal() *Principal {
	return &Principal{
		ID:        s.UserID,
		Username:  s.UserID,
		Email:     s.Email,
		Role:      s.Role,
		Scheme:    SchemeSession,
		SessionID: s.ID,
		IssuedAt:  s.CreatedAt.Unix(),
		ExpiresAt: s.ExpiresAt.Unix(),
	}
}

// NewSession creates a session for userID with the role derived from
// the user ID and the given lifetime.
func NewSession(userID, provider string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             generateSessionID(),
		UserID:         userID,
		Role:           RoleForUserID(userID),
		Provider:       provider,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

// generateSessionID returns 32 bytes of hex-encoded randomness.
func generateSessionID() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failure means the process is in serious trouble.
		panic("session ID generation failed: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

// SessionStore is the storage backend for sessions.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound for
	// unknown IDs and ErrSessionExpired for expired ones.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Touch records the access and slides the expiry to now+ttl.
	Touch(ctx context.Context, id string, ttl time.Duration) error

	// CleanupExpired removes expired sessions, returning the count.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// MemorySessionStore is the in-memory SessionStore used by the test
// profile. Sessions do not survive a restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

// Create stores a copy of session.
func (s *MemorySessionStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.sessions[session.ID] = &stored

	metrics.SessionOperations.WithLabelValues("create", "ok").Inc()
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return nil
}

// Get returns a copy of the session with the given ID.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	out := *session
	return &out, nil
}

// Delete removes the session with the given ID.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	metrics.SessionOperations.WithLabelValues("delete", "ok").Inc()
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return nil
}

// Touch records the access and slides the expiry forward.
func (s *MemorySessionStore) Touch(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	now := time.Now()
	session.LastAccessedAt = now
	if ttl > 0 {
		session.ExpiresAt = now.Add(ttl)
	}
	return nil
}

// CleanupExpired removes all expired sessions.
func (s *MemorySessionStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemorySessionStore) Close() error { return nil }

// StartSessionCleanup runs CleanupExpired on store every interval
// until ctx is canceled.
func StartSessionCleanup(ctx context.Context, store SessionStore, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.CleanupExpired(ctx)
				if err != nil {
					logging.Err(err).Msg("session cleanup failed")
					continue
				}
				if removed > 0 {
					logging.Debug().Int("removed", removed).Msg("expired sessions cleaned up")
				}
			}
		}
	}()
}
