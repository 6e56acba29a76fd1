package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer starts a test server running handler for every websocket
// connection and returns it with its ws:// URL
func newWSServer(t *testing.T, handler func(ws *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(ws)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readLoop drains a connection until it drops, keeping the session open
func readLoop(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writeEvent sends one envelope from a scripted test server
func writeEvent(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		t.Errorf("marshal %s: %v", event, err)
		return
	}
	if err := ws.WriteJSON(env); err != nil {
		t.Errorf("write %s: %v", event, err)
	}
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// testOptions returns manager options tuned for fast tests
func testOptions(url string) Options {
	return Options{
		URL:               url,
		ReconnectAttempts: 5,
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectDelayMax: 50 * time.Millisecond,
		DialTimeout:       time.Second,
	}
}
