package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client is one websocket session on the dev server
type Client struct {
	ID     string // socket id, unique per session
	UserID string
	Name   string

	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan domain.Envelope
}

// NewClient creates a client for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, userID, name string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		hub:    hub,
		conn:   conn,
		send:   make(chan domain.Envelope, 256),
	}
}

// SendEvent queues one event for delivery. Events are dropped when the
// session has ended or its buffer is full; the mutex keeps the queueing
// from racing the channel close in closeSend, which a broadcast can hit
// when a room mate disconnects mid-delivery.
func (c *Client) SendEvent(event string, payload any) {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- env:
	default:
		// Buffer full
	}
}

// closeSend ends deliveries and releases the write pump. Idempotent.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SendError queues a message_error answer
func (c *Client) SendError(msg string) {
	c.SendEvent(domain.EventMessageError, domain.MessageErrorPayload{Error: msg})
}

// ReadPump pumps events from the websocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env domain.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			break
		}

		switch env.Event {
		case domain.EventJoinRoom:
			var roomID string
			if err := json.Unmarshal(env.Payload, &roomID); err != nil {
				continue
			}
			c.hub.JoinRoom(c, roomID)

		case domain.EventSendMessage:
			var p domain.SendMessagePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			c.hub.HandleSend(c, p)

		case domain.EventCheckUserStatus:
			var peerID string
			if err := json.Unmarshal(env.Payload, &peerID); err != nil {
				continue
			}
			c.hub.HandleStatus(c, peerID)
		}
		// Unknown events are ignored.
	}
}

// WritePump pumps queued events to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
