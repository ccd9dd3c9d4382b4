package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ridewallet/pkg/logger"

	"github.com/google/uuid"
)

// Message is the envelope pushed to connected clients.
type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

type roomMessage struct {
	roomID string
	data   []byte
}

// Hub owns the client set. All membership changes happen on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan roomMessage
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan roomMessage, 256),
		done:       make(chan struct{}),
		logger:     log,
	}
}

func UserRoom(userID uuid.UUID) string {
	return "user_" + userID.String()
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.deliver:
			h.sendToRoom(msg.roomID, msg.data)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	room := UserRoom(client.UserID)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	h.mutex.Unlock()

	h.logger.WithField("user_id", client.UserID.String()).Debug("websocket client registered")

	welcome, _ := json.Marshal(Message{
		Type:      "welcome",
		UserID:    client.UserID.String(),
		Timestamp: getCurrentTimestamp(),
		Data:      map[string]interface{}{"message": "Connected successfully"},
	})
	h.sendToClient(client, welcome)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	room := UserRoom(client.UserID)
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.logger.WithField("user_id", client.UserID.String()).Debug("websocket client unregistered")
}

func (h *Hub) sendToRoom(roomID string, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop it rather than block the hub.
			h.removeLocked(client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		h.removeLocked(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

// SendToUser queues message for every connection of userID. It never blocks;
// when the queue is full the message is dropped and false is returned.
func (h *Hub) SendToUser(userID uuid.UUID, message Message) bool {
	message.RoomID = UserRoom(userID)
	message.UserID = userID.String()
	if message.Timestamp == 0 {
		message.Timestamp = getCurrentTimestamp()
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Warn("failed to encode websocket message")
		return false
	}

	select {
	case h.deliver <- roomMessage{roomID: message.RoomID, data: data}:
		return true
	default:
		h.logger.WithField("room_id", message.RoomID).Warn("websocket delivery queue full, dropping message")
		return false
	}
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
