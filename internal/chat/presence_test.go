package chat

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/domain"
)

func TestTracker_StatusAnswerFiltersOtherUsers(t *testing.T) {
	_, url := newWSServer(t, func(ws *websocket.Conn) {
		var env domain.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Event != domain.EventCheckUserStatus {
			t.Errorf("expected check_user_status, got %s", env.Event)
			return
		}
		// Stale answer about a different peer, then the real one.
		writeEvent(t, ws, domain.EventUserStatus, domain.UserStatusPayload{UserID: "u9", IsOnline: true})
		writeEvent(t, ws, domain.EventUserStatus, domain.UserStatusPayload{UserID: "u2", IsOnline: true})
		readLoop(ws)
	})

	m := NewManager(testOptions(url))
	defer m.Disconnect()
	conn := m.Connect("tok", "u1")

	tracker := Track(conn, "u2", time.Hour)
	defer tracker.Close()

	select {
	case online := <-tracker.Updates():
		if !online {
			t.Error("expected peer to be reported online")
		}
	case <-time.After(time.Second):
		t.Fatal("status update never arrived")
	}

	online, known := tracker.Status()
	if !known || !online {
		t.Errorf("expected known online status, got online=%v known=%v", online, known)
	}

	// The u9 answer must not have produced an update of its own.
	select {
	case <-tracker.Updates():
		t.Error("unexpected update from a stale status event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTracker_DeferredCheckFiresOnceAfterConnect(t *testing.T) {
	var checks atomic.Int32
	_, url := newWSServer(t, func(ws *websocket.Conn) {
		for {
			var env domain.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == domain.EventCheckUserStatus {
				checks.Add(1)
			}
		}
	})

	// Not connected yet: the initial check must be deferred, not dropped.
	c := newConn("u1")
	defer c.close()
	tracker := Track(c, "u2", time.Hour)
	defer tracker.Close()

	time.Sleep(50 * time.Millisecond)
	if got := checks.Load(); got != 0 {
		t.Fatalf("check emitted before connect: %d", got)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: time.Second}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.attach(ws)

	waitFor(t, time.Second, "deferred check", func() bool { return checks.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := checks.Load(); got != 1 {
		t.Errorf("expected exactly one deferred check, got %d", got)
	}
}

func TestTracker_PeriodicRecheck(t *testing.T) {
	var checks atomic.Int32
	_, url := newWSServer(t, func(ws *websocket.Conn) {
		for {
			var env domain.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == domain.EventCheckUserStatus {
				var peer string
				if err := json.Unmarshal(env.Payload, &peer); err != nil || peer != "u2" {
					t.Errorf("unexpected check payload %s", env.Payload)
				}
				checks.Add(1)
			}
		}
	})

	m := NewManager(testOptions(url))
	defer m.Disconnect()
	conn := m.Connect("tok", "u1")
	waitFor(t, time.Second, "connection", conn.Connected)

	tracker := Track(conn, "u2", 25*time.Millisecond)
	defer tracker.Close()

	waitFor(t, time.Second, "periodic checks", func() bool { return checks.Load() >= 3 })
}

func TestTracker_CloseStopsPolling(t *testing.T) {
	var checks atomic.Int32
	_, url := newWSServer(t, func(ws *websocket.Conn) {
		for {
			var env domain.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == domain.EventCheckUserStatus {
				checks.Add(1)
			}
		}
	})

	m := NewManager(testOptions(url))
	defer m.Disconnect()
	conn := m.Connect("tok", "u1")
	waitFor(t, time.Second, "connection", conn.Connected)

	tracker := Track(conn, "u2", 20*time.Millisecond)
	waitFor(t, time.Second, "first check", func() bool { return checks.Load() >= 1 })

	tracker.Close()
	tracker.Close() // closing twice must be safe

	// Give in-flight frames a moment to land, then demand silence.
	time.Sleep(30 * time.Millisecond)
	before := checks.Load()
	time.Sleep(120 * time.Millisecond)
	if after := checks.Load(); after != before {
		t.Errorf("checks kept firing after Close: %d -> %d", before, after)
	}

	if _, ok := <-tracker.Updates(); ok {
		t.Error("expected updates channel to be closed")
	}
}

func TestTracker_MissedAnswerKeepsLastKnown(t *testing.T) {
	answered := make(chan struct{}, 1)
	_, url := newWSServer(t, func(ws *websocket.Conn) {
		first := true
		for {
			var env domain.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if env.Event != domain.EventCheckUserStatus {
				continue
			}
			if first {
				first = false
				writeEvent(t, ws, domain.EventUserStatus, domain.UserStatusPayload{UserID: "u2", IsOnline: true})
				select {
				case answered <- struct{}{}:
				default:
				}
			}
			// Later checks go unanswered: best effort.
		}
	})

	m := NewManager(testOptions(url))
	defer m.Disconnect()
	conn := m.Connect("tok", "u1")

	tracker := Track(conn, "u2", 20*time.Millisecond)
	defer tracker.Close()

	<-answered
	waitFor(t, time.Second, "known status", func() bool {
		_, known := tracker.Status()
		return known
	})

	// Several unanswered polls later the last-known value still stands.
	time.Sleep(100 * time.Millisecond)
	online, known := tracker.Status()
	if !known || !online {
		t.Errorf("expected last-known online=true to be retained, got online=%v known=%v", online, known)
	}
}
