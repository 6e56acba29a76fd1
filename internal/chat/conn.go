package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/domain"
)

const (
	// Time allowed to write a message to the server
	writeWait = 10 * time.Second

	// Time allowed between reads; the server pings well within this window
	pongWait = 60 * time.Second

	// Maximum message size allowed from the server
	maxMessageSize = 64 * 1024
)

// StateKind identifies a connection lifecycle transition
type StateKind string

const (
	StateConnect          StateKind = "connect"
	StateDisconnect       StateKind = "disconnect"
	StateConnectError     StateKind = "connect_error"
	StateError            StateKind = "error" // established transport failed; Err carries the cause
	StateReconnect        StateKind = "reconnect"
	StateReconnectAttempt StateKind = "reconnect_attempt"
	StateReconnectFailed  StateKind = "reconnect_failed"
)

// StateEvent describes one lifecycle transition of the shared connection.
// Network failures are reported here, never as panics or thrown errors.
type StateEvent struct {
	Kind    StateKind
	Attempt int // reconnection attempt number, when applicable
	Err     error
}

// Listener is a handle for one registered event handler. Close detaches the
// handler; every screen must close its listeners on exit or they keep firing
// on the shared connection.
type Listener struct {
	once sync.Once
	off  func()
}

// Close detaches the handler. Safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(l.off)
}

// Conn is the live connection shared by every chat component. Only the
// Manager creates and destroys it; all other components attach listeners and
// emit events through the handle they were given.
type Conn struct {
	// SocketID identifies this connection instance
	SocketID string

	// UserID is the authenticated user this connection belongs to
	UserID string

	mu          sync.Mutex
	ws          *websocket.Conn // nil while disconnected
	connected   bool
	closed      bool
	pending     []domain.Envelope // deferred emits, flushed on next connect
	sessionDone chan struct{}     // closed when the active read pump exits

	nextID    int
	handlers  map[string]map[int]func(json.RawMessage)
	stateSubs map[int]func(StateEvent)

	writeMu sync.Mutex
	done    chan struct{} // closed when the connection is torn down for good
}

func newConn(userID string) *Conn {
	return &Conn{
		SocketID:  uuid.NewString(),
		UserID:    userID,
		handlers:  make(map[string]map[int]func(json.RawMessage)),
		stateSubs: make(map[int]func(StateEvent)),
		done:      make(chan struct{}),
	}
}

// Connected reports whether the transport is currently up
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// On registers fn for inbound events named event and returns its detach
// handle. fn runs on the read pump goroutine and must not block.
func (c *Conn) On(event string, fn func(json.RawMessage)) *Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	m := c.handlers[event]
	if m == nil {
		m = make(map[int]func(json.RawMessage))
		c.handlers[event] = m
	}
	m[id] = fn
	return &Listener{off: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}}
}

// OnState registers fn for connection lifecycle transitions
func (c *Conn) OnState(fn func(StateEvent)) *Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.stateSubs[id] = fn
	return &Listener{off: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}}
}

// Emit sends one event to the server. Returns ErrNotConnected while the
// transport is down; callers that must not lose the event use EmitOnConnect.
func (c *Conn) Emit(event string, payload any) error {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return c.writeEnvelope(env)
}

// EmitOnConnect sends the event now when connected, otherwise queues it and
// flushes it exactly once after the next successful connect.
func (c *Conn) EmitOnConnect(event string, payload any) error {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if !c.connected || c.ws == nil {
		c.pending = append(c.pending, env)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.writeEnvelope(env)
}

func (c *Conn) writeEnvelope(env domain.Envelope) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.connected
	c.mu.Unlock()

	if !connected || ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(env)
}

// attach installs a freshly dialed transport and starts its read pump.
// Queued deferred emits are flushed before any inbound event is dispatched.
func (c *Conn) attach(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.sessionDone = make(chan struct{})
	done := c.sessionDone
	flush := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, env := range flush {
		_ = c.writeEnvelope(env)
	}

	go c.readPump(ws, done)
}

func (c *Conn) session() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionDone
}

func (c *Conn) readPump(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		var env domain.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.detach(ws, err)
			return
		}
		c.dispatch(env)
	}
}

// detach marks the transport down after a read failure and notifies
// lifecycle subscribers. The read error surfaces as an error event before
// the disconnect, except when the session ended with a clean close frame
// or the teardown was local. A stale transport (already replaced) is
// ignored.
func (c *Conn) detach(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	closed := c.closed
	c.mu.Unlock()

	ws.Close()
	if err != nil && !closed &&
		!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.fireState(StateEvent{Kind: StateError, Err: err})
	}
	c.fireState(StateEvent{Kind: StateDisconnect})
}

func (c *Conn) dispatch(env domain.Envelope) {
	c.mu.Lock()
	fns := make([]func(json.RawMessage), 0, len(c.handlers[env.Event]))
	for _, fn := range c.handlers[env.Event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(env.Payload)
	}
}

func (c *Conn) fireState(ev StateEvent) {
	c.mu.Lock()
	fns := make([]func(StateEvent), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// close tears the connection down for good. Only the Manager calls this.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		// The read pump notices the closed transport and fires disconnect.
		ws.Close()
	}
}
