package handlers

import (
	"io"
	"net/http"

	"quickexpert/internal/utils"

	"github.com/go-chi/chi/v5"
)

// StartConversationRequest opens (or returns) a thread with a registered user
type StartConversationRequest struct {
	CounterpartID string `json:"counterpartId"`
}

// SendMessageRequest represents a request to send a direct message
type SendMessageRequest struct {
	Text string `json:"text"`
}

// HandleListConversations lists the caller's conversations, optionally filtered by ?q=
func (s *Server) HandleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		conversations, err := s.Engine.SearchConversations(r.Context(), user.ID, r.URL.Query().Get("q"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversations)
	}
}

func (s *Server) HandleStartConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartConversationRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if req.CounterpartID == "" {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "counterpartId is required", nil))
			return
		}

		user := currentUser(r)
		conversation, err := s.Engine.CreateOrGetConversation(r.Context(), user.ID, req.CounterpartID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)
	}
}

func (s *Server) HandleTotalUnread() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		total, err := s.Engine.TotalUnread(r.Context(), user.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread": total})
	}
}

func (s *Server) HandleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		conversation, err := s.Engine.GetConversation(r.Context(), user.ID, chi.URLParam(r, "counterpartId"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)
	}
}

// HandlePatchConversation applies a JSON merge patch to the counterpart metadata.
func (s *Server) HandlePatchConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}

		user := currentUser(r)
		conversation, err := s.Engine.PatchConversation(r.Context(), user.ID, chi.URLParam(r, "counterpartId"), patch)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)
	}
}

// HandleSendMessage sends text to the counterpart. Blank text is accepted and
// ignored with 204 No Content.
func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		user := currentUser(r)
		message, err := s.Engine.SendMessage(r.Context(), user.ID, chi.URLParam(r, "counterpartId"), req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if message == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusCreated, message)
	}
}

func (s *Server) HandleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		counterpartID := chi.URLParam(r, "counterpartId")
		updated, err := s.Engine.MarkConversationRead(r.Context(), user.ID, counterpartID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
	}
}
