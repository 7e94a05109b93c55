// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreLifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := NewSession("admin", "form", time.Hour)
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.UserID)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, "form", got.Provider)

	// Returned sessions are copies.
	got.UserID = "tampered"
	again, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", again.UserID)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := NewSession("guest", "form", -time.Minute)
	require.NoError(t, store.Create(ctx, session))

	_, err := store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTouchSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	session := NewSession("guest", "session", time.Minute)
	require.NoError(t, store.Create(ctx, session))

	require.NoError(t, store.Touch(ctx, session.ID, time.Hour))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Greater(t, got.ExpiresAt, session.ExpiresAt, "touch must push the expiry forward")
	assert.False(t, got.LastAccessedAt.IsZero())
}

func TestNewSessionRoleAssignment(t *testing.T) {
	admin := NewSession("admin", "form", time.Hour)
	assert.Equal(t, RoleAdmin, admin.Role)

	guest := NewSession("guest", "form", time.Hour)
	assert.Equal(t, RoleUser, guest.Role)

	// IDs are unique and long enough to be opaque.
	assert.NotEqual(t, admin.ID, guest.ID)
	assert.Len(t, admin.ID, 64)
}

func TestBadgerSessionStore(t *testing.T) {
	store, err := NewBadgerSessionStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	session := NewSession("admin", "oauth", time.Hour)
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.UserID)
	assert.Equal(t, RoleAdmin, got.Role)

	require.NoError(t, store.Touch(ctx, session.ID, time.Hour))

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, session.ID))
}

func TestBadgerSessionStoreRejectsExpired(t *testing.T) {
	store, err := NewBadgerSessionStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	session := NewSession("guest", "form", -time.Minute)
	err = store.Create(context.Background(), session)
	assert.Error(t, err)
}

func TestSessionStoreFactory(t *testing.T) {
	memStore, err := NewSessionStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemorySessionStore{}, memStore)

	badgerStore, err := NewSessionStore("badger", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &BadgerSessionStore{}, badgerStore)
	_ = badgerStore.Close()

	_, err = NewSessionStore("redis", "")
	assert.Error(t, err)
}

func TestSessionManagerCookieFlow(t *testing.T) {
	manager := NewSessionManager(NewMemorySessionStore(), "MY_SESSION", time.Hour, false)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	session, err := manager.CreateSession(ctx, rec, "admin", "form")
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "MY_SESSION", cookie.Name)
	assert.Equal(t, session.ID, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.True(t, cookie.HttpOnly)

	// Resolve the session back from a request carrying the cookie.
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.AddCookie(cookie)

	resolved, err := manager.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "admin", resolved.UserID)
	assert.Equal(t, RoleAdmin, resolved.Role)

	// Destroy clears the cookie and the stored session.
	destroyRec := httptest.NewRecorder()
	require.NoError(t, manager.DestroySession(ctx, destroyRec, req))

	cleared := destroyRec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	_, err = manager.Resolve(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionManagerNoCookie(t *testing.T) {
	manager := NewSessionManager(NewMemorySessionStore(), "MY_SESSION", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	_, err := manager.Resolve(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestSessionAuthenticator(t *testing.T) {
	manager := NewSessionManager(NewMemorySessionStore(), "MY_SESSION", time.Hour, false)
	authenticator := NewSessionAuthenticator(manager)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	_, err := manager.CreateSession(ctx, rec, "guest", "form")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.AddCookie(rec.Result().Cookies()[0])

	principal, err := authenticator.Authenticate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "guest", principal.Username)
	assert.Equal(t, SchemeSession, principal.Scheme)
	assert.NotEmpty(t, principal.SessionID)
}

func TestSessionChallengeBody(t *testing.T) {
	manager := NewSessionManager(NewMemorySessionStore(), "MY_SESSION", time.Hour, false)
	authenticator := NewSessionAuthenticator(manager)

	rec := httptest.NewRecorder()
	authenticator.Challenge(rec)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, SessionChallengeBody+"\n", rec.Body.String())
}

func TestStartSessionCleanup(t *testing.T) {
	store := NewMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expired := NewSession("guest", "form", -time.Minute)
	require.NoError(t, store.Create(ctx, expired))

	StartSessionCleanup(ctx, store, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), expired.ID)
		return err == ErrSessionNotFound
	}, time.Second, 10*time.Millisecond)
}
