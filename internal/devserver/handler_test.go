package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/auth"
)

const handlerSecret = "handler-secret"

func startHandler(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(10)
	handler := NewHandler(hub, handlerSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/healthz", handler.HandleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	_, srv := startHandler(t)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandler_RejectsMismatchedUser(t *testing.T) {
	_, srv := startHandler(t)

	token, err := auth.Sign(handlerSecret, "u1", "Alice", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	resp, err := http.Get(srv.URL + "/ws?token=" + token + "&user_id=u2")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for mismatched user, got %d", resp.StatusCode)
	}
}

func TestHandler_UpgradesValidToken(t *testing.T) {
	hub, srv := startHandler(t)

	token, err := auth.Sign(handlerSecret, "u1", "Alice", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token + "&user_id=u1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered, count %d", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !hub.IsOnline("u1") {
		t.Error("expected u1 to be online after upgrade")
	}
}

func TestHandler_Health(t *testing.T) {
	_, srv := startHandler(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
	if body.Clients != 0 {
		t.Errorf("expected 0 clients, got %d", body.Clients)
	}
}
