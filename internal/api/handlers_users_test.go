// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreate(t *testing.T) {
	ts := newTestServer(t)

	ts.mock.ExpectExec("INSERT INTO users").
		WithArgs("Pelle", 34).
		WillReturnResult(sqlmock.NewResult(7, 1))

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Pelle","age":34}`))
	req.Header.Set("Content-Type", "application/json")

	rec := ts.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body["id"])
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}

func TestUserCreateValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","age":10}`},
		{"negative age", `{"name":"Pelle","age":-1}`},
		{"malformed json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			rec := ts.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUserGet(t *testing.T) {
	ts := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		ts.mock.ExpectQuery("SELECT id, name, age FROM users WHERE").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).AddRow(7, "Pelle", 34))

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/users/7", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var user map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, "Pelle", user["name"])
	})

	t.Run("not found", func(t *testing.T) {
		ts.mock.ExpectQuery("SELECT id, name, age FROM users WHERE").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/users/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/users/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-positive id", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/users/0", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserUpdate(t *testing.T) {
	ts := newTestServer(t)

	t.Run("existing user", func(t *testing.T) {
		ts.mock.ExpectExec("UPDATE users SET").
			WithArgs("Pelle", 35, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest(http.MethodPut, "/users/7", strings.NewReader(`{"name":"Pelle","age":35}`))
		req.Header.Set("Content-Type", "application/json")

		rec := ts.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		ts.mock.ExpectExec("UPDATE users SET").
			WithArgs("Pelle", 35, int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		req := httptest.NewRequest(http.MethodPut, "/users/99", strings.NewReader(`{"name":"Pelle","age":35}`))
		req.Header.Set("Content-Type", "application/json")

		rec := ts.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserDelete(t *testing.T) {
	ts := newTestServer(t)

	t.Run("existing user", func(t *testing.T) {
		ts.mock.ExpectExec("DELETE FROM users WHERE").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := ts.do(httptest.NewRequest(http.MethodDelete, "/users/7", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		ts.mock.ExpectExec("DELETE FROM users WHERE").
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		rec := ts.do(httptest.NewRequest(http.MethodDelete, "/users/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUsersWithoutDatabase(t *testing.T) {
	ts := newTestServer(t)
	ts.server.users = nil
	ts.router = ts.server.Router()

	for _, target := range []string{"/users", "/users/1"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestUserList(t *testing.T) {
	ts := newTestServer(t)

	ts.mock.ExpectQuery("SELECT id, name, age FROM users ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(1, "Pelle", 34).
			AddRow(2, "Kalle", 28))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}
