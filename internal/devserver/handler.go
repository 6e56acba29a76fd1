package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/auth"
	"github.com/edulink/chat/internal/config"
)

// Handler exposes the websocket endpoint and a health probe
type Handler struct {
	hub    *Hub
	secret string
}

// NewHandler creates a handler over hub, verifying tokens with secret
func NewHandler(hub *Hub, secret string) *Handler {
	return &Handler{hub: hub, secret: secret}
}

// isOriginAllowed checks if the origin is in the allowed list
func isOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin and non-browser clients)
	if origin == "" {
		return true
	}
	for _, allowed := range config.AppConfig.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return isOriginAllowed(r.Header.Get("Origin"))
	},
}

// HandleWebSocket authenticates and upgrades a chat connection. The token
// travels as a query parameter; its uid claim must match the user_id the
// client tags its connection with.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := auth.Verify(h.secret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if uid := r.URL.Query().Get("user_id"); uid != "" && uid != claims.UserID {
		http.Error(w, "token does not match user", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(h.hub, conn, claims.UserID, claims.Name)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HandleHealth reports liveness and the connected client count
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": h.hub.ClientCount(),
	})
}
