// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityLogger emits structured authentication events. All values
// pass through the sanitizers below so tokens and session IDs never
// reach the log stream in full.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: Logger().With().Str("component", "security").Logger()}
}

// NewSecurityLoggerWithLogger creates a security logger on a specific
// zerolog logger. Used by tests to capture output.
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogLoginSuccess records a successful authentication.
func (l *SecurityLogger) LogLoginSuccess(userID, scheme, ip string) {
	l.logger.Info().
		Str("event", "login_success").
		Str("user_id", SanitizeUserID(userID)).
		Str("scheme", scheme).
		Str("ip", ip).
		Msg("authentication succeeded")
}

// LogLoginFailure records a rejected authentication attempt.
func (l *SecurityLogger) LogLoginFailure(scheme, ip, reason string) {
	l.logger.Warn().
		Str("event", "login_failure").
		Str("scheme", scheme).
		Str("ip", ip).
		Str("reason", reason).
		Msg("authentication failed")
}

// LogSessionCreated records a new session.
func (l *SecurityLogger) LogSessionCreated(userID, sessionID, provider string) {
	l.logger.Info().
		Str("event", "session_created").
		Str("user_id", SanitizeUserID(userID)).
		Str("session_id", SanitizeSessionID(sessionID)).
		Str("provider", provider).
		Msg("session created")
}

// LogLogout records a destroyed session.
func (l *SecurityLogger) LogLogout(userID, sessionID string) {
	l.logger.Info().
		Str("event", "logout").
		Str("user_id", SanitizeUserID(userID)).
		Str("session_id", SanitizeSessionID(sessionID)).
		Msg("session destroyed")
}

// SanitizeToken keeps only a short prefix of a bearer token.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

// SanitizeSessionID keeps only a short prefix of a session ID.
func SanitizeSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 8 {
		return "***"
	}
	return sessionID[:8] + "..."
}

// SanitizeUserID truncates unreasonably long user identifiers.
func SanitizeUserID(userID string) string {
	return truncateString(userID, 64)
}

// SanitizeEmail masks the local part of an address.
func SanitizeEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
