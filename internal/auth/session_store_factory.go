// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"fmt"

	"github.com/kteeth/kteeth/internal/logging"
)

// NewSessionStore creates the session store backend named by kind:
// "memory" for the in-process map, "badger" for the persistent store
// at path.
func NewSessionStore(kind, path string) (SessionStore, error) {
	switch kind {
	case "memory", "":
		logging.Info().Str("backend", "memory").Msg("session store initialized")
		return NewMemorySessionStore(), nil

	case "badger":
		store, err := NewBadgerSessionStore(path)
		if err != nil {
			return nil, fmt.Errorf("badger session store: %w", err)
		}
		logging.Info().Str("backend", "badger").Str("path", path).Msg("session store initialized")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown session store backend: %s", kind)
	}
}
