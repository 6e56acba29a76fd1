package devserver

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/edulink/chat/internal/chat"
	"github.com/edulink/chat/internal/domain"
)

// Hub routes chat traffic for every connected client. Rooms are created on
// first join and each keeps a bounded history used for join snapshots.
// State is session-scoped; nothing survives a restart.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client // by socket id
	rooms       map[string]*room
	historySize int
}

type room struct {
	members map[string]*Client // by socket id
	history *History
}

// NewHub creates a hub whose rooms keep historySize messages each
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = domain.MaxHistorySize
	}
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]*room),
		historySize: historySize,
	}
}

// Register adds a connected client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from the hub and from every room it joined.
// Empty rooms are destroyed with their history.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	for id, r := range h.rooms {
		delete(r.members, c.ID)
		if len(r.members) == 0 {
			delete(h.rooms, id)
		}
	}
	// Broadcasts deliver outside the hub lock and may still hold this
	// client; closeSend makes their queueing a no-op instead of a send on
	// a closed channel.
	c.closeSend()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsOnline reports whether any connected client belongs to userID
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// JoinRoom adds the client to roomID and answers with the room's history
// snapshot. Joining twice is harmless; the snapshot is simply resent, which
// is what a reconnecting client needs.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		c.SendError("room is required")
		return
	}

	h.mu.Lock()
	r := h.rooms[roomID]
	if r == nil {
		r = &room{
			members: make(map[string]*Client),
			history: NewHistory(h.historySize),
		}
		h.rooms[roomID] = r
	}
	r.members[c.ID] = c
	snapshot := r.history.All()
	h.mu.Unlock()

	c.SendEvent(domain.EventPreviousMessages, snapshot)
}

// HandleSend validates an outbound message and broadcasts the confirmed
// record to every room member, sender included. Validation failures answer
// with message_error and nothing is stored or delivered.
func (h *Hub) HandleSend(c *Client, p domain.SendMessagePayload) {
	content := strings.TrimSpace(p.Content)
	switch {
	case content == "":
		c.SendError("message is empty")
		return
	case utf8.RuneCountInString(content) > domain.MaxContentLength:
		c.SendError(fmt.Sprintf("message too long (max %d characters)", domain.MaxContentLength))
		return
	case strings.TrimSpace(p.RoomID) == "":
		c.SendError("room is required")
		return
	case chat.IsIndividualRoomID(p.RoomID) && !chat.ValidUserID(p.ReceiverID):
		c.SendError("receiver is required")
		return
	}

	h.mu.Lock()
	r := h.rooms[p.RoomID]
	if r == nil || r.members[c.ID] == nil {
		h.mu.Unlock()
		c.SendError("join the room before sending")
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   c.UserID,
		SenderName: c.Name,
		Content:    content,
		RoomID:     p.RoomID,
		ReceiverID: p.ReceiverID,
		CreatedAt:  time.Now().UTC(),
	}
	r.history.Add(msg)
	members := make([]*Client, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	h.mu.Unlock()

	for _, m := range members {
		m.SendEvent(domain.EventNewMessage, msg)
	}
}

// HandleStatus answers a presence check for peerID to the asking client only
func (h *Hub) HandleStatus(c *Client, peerID string) {
	c.SendEvent(domain.EventUserStatus, domain.UserStatusPayload{
		UserID:   peerID,
		IsOnline: h.IsOnline(peerID),
	})
}
