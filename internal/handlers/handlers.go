package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quickexpert/internal/directory"
	"quickexpert/internal/engine"
	"quickexpert/internal/identity"
	"quickexpert/internal/middleware"
	"quickexpert/internal/utils"
	"quickexpert/internal/websocket"
)

// Server holds all server dependencies
type Server struct {
	Engine    *engine.Engine
	Session   *identity.Session
	Verifier  identity.Verifier
	Local     *identity.LocalProvider // nil unless the local provider is in use
	Directory *directory.Directory
	Hub       *websocket.Hub
	Metrics   *utils.MetricsCollector

	AllowedOrigins []string
	MetricsEnabled bool
}

// NewServer creates a new Server instance with the given components
func NewServer(
	eng *engine.Engine,
	session *identity.Session,
	verifier identity.Verifier,
	local *identity.LocalProvider,
	dir *directory.Directory,
	hub *websocket.Hub,
	metrics *utils.MetricsCollector,
) *Server {
	return &Server{
		Engine:         eng,
		Session:        session,
		Verifier:       verifier,
		Local:          local,
		Directory:      dir,
		Hub:            hub,
		Metrics:        metrics,
		AllowedOrigins: []string{"*"},
		MetricsEnabled: true,
	}
}

func currentUser(r *http.Request) *identity.User {
	user, _ := middleware.GetUserFromContext(r.Context())
	return user
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps app errors to their HTTP status and hides everything else.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := utils.HTTPStatusFor(err)
	message := http.StatusText(status)
	var appErr *utils.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.Metrics.IncrementErrors()
		log.Printf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err)
	}
	return nil
}
