package websocket

import (
	"sync"

	"github.com/jlairapp/faceFlipper/internal/upload"
	"github.com/rs/zerolog/log"
)

// Hub fans upload announcements out to every connected client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *UploadMessage
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *UploadMessage, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	log.Info().
		Str("clientId", client.id).
		Str("subject", client.subject).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	log.Info().
		Str("clientId", client.id).
		Int("totalClients", len(h.clients)).
		Msg("[WS] Client unregistered")
}

func (h *Hub) broadcastToAll(msg *UploadMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			log.Warn().
				Str("clientId", client.id).
				Msg("[WS] Client send buffer full, dropping message")
		}
	}

	log.Debug().
		Int("recipients", len(clients)).
		Msg("[WS] Upload broadcast complete")
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Announce queues msg for every connected client without blocking the
// caller; when the queue is full the announcement is dropped.
func (h *Hub) Announce(msg *UploadMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Msg("[WS] Broadcast queue full, dropping upload announcement")
	}
}

// UploadCompleted implements upload.Notifier.
func (h *Hub) UploadCompleted(ev *upload.UploadCompleted) {
	h.Announce(&UploadMessage{
		Type:    MessageTypeUpload,
		Message: uploadMessage,
		Upload:  ev,
	})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
