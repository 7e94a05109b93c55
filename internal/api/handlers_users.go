// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kteeth/kteeth/internal/database"
	"github.com/kteeth/kteeth/internal/logging"
)

// requireUsers rejects user requests when the repository was never
// wired (database unreachable at startup). 503 rather than a panic.
func (s *Server) requireUsers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.users == nil {
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseID reads the {id} route parameter. A non-numeric ID is a client
// error, reported as 400 rather than bubbling up.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// decodeUser reads and validates the request body.
func (s *Server) decodeUser(r *http.Request) (database.NewUser, error) {
	var user database.NewUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		return user, errors.New("invalid request body")
	}
	if err := s.validate.Struct(user); err != nil {
		return user, errors.New("name is required and age must be between 0 and 200")
	}
	return user, nil
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	user, err := s.decodeUser(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.users.Create(r.Context(), user)
	if err != nil {
		logging.Err(err).Msg("user create failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.Get(r.Context(), id)
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Err(err).Int64("id", id).Msg("user get failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.decodeUser(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.users.Update(r.Context(), id, user)
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Err(err).Int64("id", id).Msg("user update failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.users.Delete(r.Context(), id)
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logging.Err(err).Int64("id", id).Msg("user delete failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		logging.Err(err).Msg("user list failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, users)
}
