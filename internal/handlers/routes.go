package handlers

import (
	"net/http"

	"quickexpert/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(s.AllowedOrigins)))
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", s.HandleHealth())
	if s.MetricsEnabled {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.HandleSignUp())
		r.Post("/login", s.HandleLogin())
		r.Post("/session", s.HandleSession())
		r.With(middleware.Authenticator(s.Verifier)).Post("/logout", s.HandleLogout())
	})

	r.Route("/directory", func(r chi.Router) {
		r.Get("/", s.HandleDirectorySearch())
		r.Get("/{role}/{id}", s.HandleDirectoryProfile())
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(s.Verifier))

		r.Get("/users", s.HandleListUsers())
		r.Get("/users/{id}", s.HandleGetUser())

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.HandleListConversations())
			r.Post("/", s.HandleStartConversation())
			r.Get("/unread", s.HandleTotalUnread())
			r.Get("/{counterpartId}", s.HandleGetConversation())
			r.Patch("/{counterpartId}", s.HandlePatchConversation())
			r.Post("/{counterpartId}/messages", s.HandleSendMessage())
			r.Post("/{counterpartId}/read", s.HandleMarkRead())
		})

		r.Get("/ws", s.HandleWebSocket())
	})

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()
		next.ServeHTTP(w, r)
	})
}
