package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe       MessageType = "subscribe"
	MessageTypeUnsubscribe     MessageType = "unsubscribe"
	MessageTypeSyncStarted     MessageType = "sync.started"
	MessageTypeSyncProgress    MessageType = "sync.progress"
	MessageTypeSyncCompleted   MessageType = "sync.completed"
	MessageTypeSyncFailed      MessageType = "sync.failed"
	MessageTypeEmailClassified MessageType = "email.classified"
	MessageTypeError           MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    MessageType `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SyncEventPayload carries sync lifecycle notifications.
type SyncEventPayload struct {
	AccountID     string `json:"account_id"`
	EmailsFetched int    `json:"emails_fetched,omitempty"`
	EmailsSaved   int    `json:"emails_saved,omitempty"`
	EmailsSkipped int    `json:"emails_skipped,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ClassifiedPayload announces one email finishing classification.
type ClassifiedPayload struct {
	EmailID  string `json:"email_id"`
	Category string `json:"category"`
}

// Hub maintains the set of active clients and routes events to the
// clients subscribed to a user's stream.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// User subscriptions: userID -> set of clients
	subscriptions map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to a user stream
	subscribe chan *subscriptionRequest

	// Unsubscribe from a user stream
	unsubscribeUser chan *subscriptionRequest

	// Broadcast to a user's subscribers
	broadcast chan *broadcastMessage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	userID string
}

type broadcastMessage struct {
	userID  string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		subscriptions:   make(map[string]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		subscribe:       make(chan *subscriptionRequest),
		unsubscribeUser: make(chan *subscriptionRequest),
		broadcast:       make(chan *broadcastMessage, 256),
		logger:          logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for userID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, userID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.userID] == nil {
				h.subscriptions[req.userID] = make(map[*Client]bool)
			}
			h.subscriptions[req.userID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed", slog.String("user_id", req.userID))
			}

		case req := <-h.unsubscribeUser:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.userID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.userID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed", slog.String("user_id", req.userID))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.userID]
			for client := range subscribers {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a user's event stream
func (h *Hub) Subscribe(client *Client, userID string) {
	h.subscribe <- &subscriptionRequest{client: client, userID: userID}
}

// Unsubscribe unsubscribes a client from a user's event stream
func (h *Hub) Unsubscribe(client *Client, userID string) {
	h.unsubscribeUser <- &subscriptionRequest{client: client, userID: userID}
}

// Broadcast sends an event to every client subscribed to the user.
func (h *Hub) Broadcast(userID string, msgType MessageType, payload interface{}) {
	msg := WSMessage{
		Type:    msgType,
		UserID:  userID,
		Payload: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	h.broadcast <- &broadcastMessage{
		userID:  userID,
		message: data,
	}
}
