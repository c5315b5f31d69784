package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/service"
)

// handleAuthSignUp handles POST /api/auth-table/signup
func (s *Server) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var req service.SignUpInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	user, err := s.authTable.SignUp(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "user": user})
}

// handleAuthSignIn handles POST /api/auth-table/signin. The login may be
// a username or an email address.
func (s *Server) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	user, err := s.authTable.SignIn(r.Context(), req.Login, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// handleAuthGetUser handles GET /api/auth-table/users/{id}
func (s *Server) handleAuthGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := authUserID(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	user, err := s.authTable.GetUserByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleAuthGetUserByEmail handles GET /api/auth-table/users?email=
func (s *Server) handleAuthGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := s.authTable.GetUserByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleAuthUpdateUser handles PUT /api/auth-table/users/{id}
func (s *Server) handleAuthUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := authUserID(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var req service.UpdateUserInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	user, err := s.authTable.UpdateUser(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleAuthDeactivateUser handles DELETE /api/auth-table/users/{id}
func (s *Server) handleAuthDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := authUserID(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := s.authTable.DeactivateUser(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func authUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidParameterError("id", "must be a positive integer")
	}
	return id, nil
}
