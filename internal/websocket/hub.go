package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// MessageToSend defines the structure for sending a message to a specific user.
type MessageToSend struct {
	TargetUserID string
	Payload      []byte
}

// Hub maintains the set of active clients and pushes events to them.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	Clients map[string]map[*Client]bool

	// Channel for sending messages to specific users.
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex

	// Closed once Run has returned.
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		SendDirect: make(chan *MessageToSend, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and outbound messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.stopOnce.Do(func() { close(h.done) })
			log.Println("WebSocket Hub stopped.")
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.UserID]; !ok {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			log.Printf("WebSocket Client registered for User %s. Total connections for user: %d", client.UserID, len(h.Clients[client.UserID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if userClients, ok := h.Clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					close(client.Send)
					if len(userClients) == 0 {
						delete(h.Clients, client.UserID)
						log.Printf("WebSocket Client unregistered. User %s has no more connections.", client.UserID)
					}
				}
			}
			h.mu.Unlock()

		case directMessage := <-h.SendDirect:
			h.mu.RLock()
			userClients := h.Clients[directMessage.TargetUserID]
			for client := range userClients {
				select {
				case client.Send <- directMessage.Payload:
				default:
					log.Printf("Send channel full for client of User %s. Message dropped for this client.", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, userClients := range h.Clients {
		for client := range userClients {
			close(client.Send)
		}
		delete(h.Clients, userID)
	}
}

// Join registers c with the running hub. It returns false once the hub has
// stopped, in which case the caller owns the connection and must close it.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c. After the hub has stopped it returns immediately.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// IsConnected reports whether the user has at least one open connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID]) > 0
}

// SendDirectMessage queues a raw payload for every connection of a user.
func (h *Hub) SendDirectMessage(targetUserID string, payload []byte) {
	message := &MessageToSend{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.SendDirect <- message:
	case <-h.done:
	case <-time.After(time.Second):
		log.Printf("Timeout queuing message in hub's SendDirect channel for User %s. Hub might be busy or blocked.", targetUserID)
	}
}

// Notify encodes event as JSON and pushes it to the user's connections.
// Users without a connection are skipped.
func (h *Hub) Notify(userID string, event interface{}) {
	if !h.IsConnected(userID) {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("WebSocket Hub: failed to encode event for User %s: %v", userID, err)
		return
	}
	h.SendDirectMessage(userID, payload)
}
