// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kteeth/kteeth/internal/metrics"
)

const sessionKeyPrefix = "session:"

// BadgerSessionStore persists sessions in BadgerDB so logins survive a
// restart. Entries carry a badger TTL matching the session expiry, so
// the database reclaims them even without explicit cleanup.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore opens a BadgerDB at path.
func NewBadgerSessionStore(path string) (*BadgerSessionStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	return &BadgerSessionStore{db: db}, nil
}

// Create stores a new session with a TTL matching its expiry.
func (s *BadgerSessionStore) Create(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+session.ID), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		metrics.SessionOperations.WithLabelValues("create", "error").Inc()
		return fmt.Errorf("store session: %w", err)
	}

	metrics.SessionOperations.WithLabelValues("create", "ok").Inc()
	return nil
}

// Get retrieves a session by ID.
func (s *BadgerSessionStore) Get(_ context.Context, id string) (*Session, error) {
	var session Session

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Delete removes a session by ID. Unknown IDs are not an error.
func (s *BadgerSessionStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(sessionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		metrics.SessionOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete session: %w", err)
	}

	metrics.SessionOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Touch records the access and slides the expiry forward, rewriting
// the entry with a matching badger TTL.
func (s *BadgerSessionStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	session.LastAccessedAt = now
	if ttl > 0 {
		session.ExpiresAt = now.Add(ttl)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl = time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+id), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// CleanupExpired scans for sessions past their expiry that badger has
// not yet reclaimed.
func (s *BadgerSessionStore) CleanupExpired(_ context.Context) (int, error) {
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var session Session
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				continue
			}
			if session.IsExpired() {
				expired = append(expired, session.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	removed := 0
	for _, id := range expired {
		if err := s.Delete(context.Background(), id); err == nil {
			removed++
		}
	}

	return removed, nil
}

// Close closes the underlying database.
func (s *BadgerSessionStore) Close() error {
	return s.db.Close()
}
