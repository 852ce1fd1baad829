package handlers

import (
	"log"
	"net/http"

	"quickexpert/internal/websocket"

	ws "github.com/gorilla/websocket"
)

// HandleWebSocket upgrades an authenticated request to the push channel.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	upgrader := ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for User %s: %v", user.ID, err)
			// Note: Cannot write HTTP error after successful upgrade attempt
			return
		}

		client := websocket.NewClient(s.Hub, user.ID, conn)
		if !client.Hub.Join(client) {
			log.Printf("WebSocket hub stopped, dropping connection for User %s", user.ID)
			conn.Close()
			return
		}
		log.Printf("WebSocket client registered for User %s", user.ID)

		go client.WritePump()
		go client.ReadPump()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
