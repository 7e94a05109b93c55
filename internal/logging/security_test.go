// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSecurityLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	sec.LogLoginSuccess("admin", "basic", "127.0.0.1")
	sec.LogLoginFailure("jwt", "127.0.0.1", "invalid credentials")
	sec.LogSessionCreated("admin", "0123456789abcdef0123456789abcdef", "session")
	sec.LogLogout("admin", "0123456789abcdef0123456789abcdef")

	out := buf.String()
	assert.Contains(t, out, `"event":"login_success"`)
	assert.Contains(t, out, `"event":"login_failure"`)
	assert.Contains(t, out, `"event":"session_created"`)
	assert.Contains(t, out, `"event":"logout"`)
	assert.Contains(t, out, `"component":"security"`)

	// Full session IDs must never appear.
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.Contains(t, out, "01234567...")
}

func TestSanitizers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"empty token", SanitizeToken(""), ""},
		{"short token", SanitizeToken("abc"), "***"},
		{"long token", SanitizeToken("abcdefghijklmnop"), "abcdefgh..."},
		{"short session", SanitizeSessionID("xy"), "***"},
		{"email", SanitizeEmail("pelle@example.com"), "p***@example.com"},
		{"bad email", SanitizeEmail("not-an-email"), "***"},
		{"long user id", SanitizeUserID(strings.Repeat("a", 100)), strings.Repeat("a", 64) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
