package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/edulink/chat/internal/domain"
)

// Tracker polls one peer's online status over the shared connection.
// Presence is best effort: an unanswered check leaves the last-known value
// in place and is never treated as an error.
type Tracker struct {
	conn   *Conn
	peerID string

	mu     sync.Mutex
	online bool
	known  bool
	closed bool

	updates   chan bool
	listeners []*Listener
	stop      chan struct{}
}

// Track starts watching peerID, issuing one check right away (deferred until
// connect when the transport is down) and another every interval while the
// tracker stays open. Close cancels the interval; a screen that forgets to
// close its tracker keeps a timer running against the shared connection.
func Track(conn *Conn, peerID string, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = domain.DefaultPresenceInterval
	}
	t := &Tracker{
		conn:    conn,
		peerID:  peerID,
		updates: make(chan bool, 8),
		stop:    make(chan struct{}),
	}
	t.listeners = append(t.listeners,
		conn.On(domain.EventUserStatus, t.onStatus),
		conn.OnState(func(ev StateEvent) {
			if ev.Kind == StateReconnect {
				_ = conn.Emit(domain.EventCheckUserStatus, peerID)
			}
		}),
	)
	_ = conn.EmitOnConnect(domain.EventCheckUserStatus, peerID)
	go t.loop(interval)
	return t
}

// Status returns the last-known online flag. known is false until the first
// answer arrives.
func (t *Tracker) Status() (online, known bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online, t.known
}

// Updates delivers online-status changes. Closed by Close.
func (t *Tracker) Updates() <-chan bool {
	return t.updates
}

// Close cancels the periodic re-check and detaches all listeners. The shared
// connection is left untouched.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stop)
	for _, l := range t.listeners {
		l.Close()
	}
	close(t.updates)
}

func (t *Tracker) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Skipped while disconnected; the last-known value stands.
			if t.conn.Connected() {
				_ = t.conn.Emit(domain.EventCheckUserStatus, t.peerID)
			}
		case <-t.stop:
			return
		}
	}
}

// onStatus applies a status answer, ignoring answers about other users.
// Stale events show up after navigating between chats that share the
// connection.
func (t *Tracker) onStatus(raw json.RawMessage) {
	var p domain.UserStatusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if p.UserID != t.peerID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	changed := !t.known || t.online != p.IsOnline
	t.online = p.IsOnline
	t.known = true
	if changed {
		select {
		case t.updates <- p.IsOnline:
		default:
		}
	}
}
