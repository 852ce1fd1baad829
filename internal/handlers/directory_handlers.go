package handlers

import (
	"net/http"

	"quickexpert/internal/directory"

	"github.com/go-chi/chi/v5"
)

// ProfileResponse is a directory entry with its WhatsApp contact link
type ProfileResponse struct {
	directory.Profile
	ContactLink string `json:"contactLink,omitempty"`
}

// HandleDirectorySearch lists profiles filtered by ?role= and ?q=
func (s *Server) HandleDirectorySearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var role directory.Role
		if value := r.URL.Query().Get("role"); value != "" {
			parsed, err := directory.ParseRole(value)
			if err != nil {
				s.writeError(w, err)
				return
			}
			role = parsed
		}
		writeJSON(w, http.StatusOK, s.Directory.Search(r.URL.Query().Get("q"), role))
	}
}

// HandleDirectoryProfile returns one profile by role and id. ?text= prefills
// the WhatsApp message.
func (s *Server) HandleDirectoryProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := directory.ParseRole(chi.URLParam(r, "role"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		profile, err := s.Directory.ByRole(role, chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &ProfileResponse{
			Profile:     profile,
			ContactLink: directory.ContactLink(profile, r.URL.Query().Get("text")),
		})
	}
}
