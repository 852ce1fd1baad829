package handlers

import (
	"log"
	"net/http"

	"quickexpert/internal/identity"
	"quickexpert/internal/middleware"
	"quickexpert/internal/utils"

	"github.com/go-chi/chi/v5"
)

// SignUpRequest represents a request to create a local account
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionRequest exchanges a token issued elsewhere (for example a Firebase
// ID token) for a sign-in. The token may also come in the Authorization header.
type SessionRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned by every endpoint that signs a user in
type AuthResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// HandleSignUp handles requests to register a new local account
func (s *Server) HandleSignUp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Local == nil {
			http.Error(w, "Local accounts are disabled", http.StatusNotFound)
			return
		}

		var req SignUpRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		user, token, err := s.Local.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.Session.SignIn(*user)
		writeJSON(w, http.StatusCreated, &AuthResponse{Token: token, User: user})
	}
}

// HandleLogin handles requests to log in with a local account
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Local == nil {
			http.Error(w, "Local accounts are disabled", http.StatusNotFound)
			return
		}

		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		user, token, err := s.Local.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			log.Printf("HTTP Handler: login failed for %s: %v", req.Email, err)
			s.writeError(w, err)
			return
		}

		s.Session.SignIn(*user)
		writeJSON(w, http.StatusOK, &AuthResponse{Token: token, User: user})
	}
}

// HandleSession signs in the holder of any token the verifier accepts.
func (s *Server) HandleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				s.writeError(w, err)
				return
			}
		}
		if req.Token == "" {
			req.Token = middleware.FindToken(r)
		}
		if req.Token == "" {
			s.writeError(w, utils.NewUnauthorizedError("token required"))
			return
		}

		user, err := s.Verifier.Verify(r.Context(), req.Token)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.Session.SignIn(*user)
		writeJSON(w, http.StatusOK, &AuthResponse{Token: req.Token, User: user})
	}
}

// HandleLogout publishes a sign-out for the authenticated user.
func (s *Server) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		s.Session.SignOut(*user)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleListUsers returns the registered user directory
func (s *Server) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.Engine.ListUsers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func (s *Server) HandleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Engine.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
