// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &DB{
		pool:        sqlx.NewDb(mockDB, "mysql"),
		maxPoolSize: 10,
		minIdle:     2,
	}, mock
}

func TestStatsReportsPoolLimits(t *testing.T) {
	db, _ := newMockDB(t)

	stats := db.Stats()
	assert.Equal(t, 10, stats.MaxPoolSize)
	assert.Equal(t, 2, stats.MinIdle)
	assert.GreaterOrEqual(t, stats.TotalConnections, 0)
}

func TestPoolStatsJSONShape(t *testing.T) {
	raw, err := json.Marshal(PoolStats{MaxPoolSize: 10, MinIdle: 2})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, key := range []string{
		"activeConnections", "idleConnections", "totalConnections",
		"threadsAwaitingConnection", "maxPoolSize", "minIdle",
	} {
		assert.Contains(t, fields, key)
	}
}

func TestPing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
