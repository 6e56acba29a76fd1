package chat

import (
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edulink/chat/internal/domain"
)

// Options configures the connection Manager
type Options struct {
	// URL is the primary websocket endpoint, e.g. ws://host/ws
	URL string

	// FallbackURL, when set, is dialed whenever the primary endpoint cannot
	// be reached. It serves deployments where the preferred endpoint is
	// blocked by a proxy and a more compatible one must be used instead.
	FallbackURL string

	// TokenValidator runs before the first dial. A returned error fails the
	// connection immediately without retries; used to reject expired tokens
	// before touching the network.
	TokenValidator func(token string) error

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	DialTimeout       time.Duration
}

// Manager owns the single process-wide connection. Its lifetime follows
// authentication: Connect at login, Disconnect at logout. Screens look the
// connection up through Socket and never close it themselves.
type Manager struct {
	mu   sync.Mutex
	opts Options
	conn *Conn
}

// NewManager creates a Manager, filling unset options with defaults
func NewManager(opts Options) *Manager {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = domain.DefaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = domain.DefaultReconnectDelay
	}
	if opts.ReconnectDelayMax <= 0 {
		opts.ReconnectDelayMax = domain.DefaultReconnectDelayMax
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = domain.DefaultDialTimeout
	}
	return &Manager{opts: opts}
}

// Connect returns the shared connection for userID, creating it on first
// call. Idempotent: while a connection exists it is returned unchanged, so
// repeated logins never produce duplicate connections. The handle is usable
// immediately; transport state arrives through OnState events.
func (m *Manager) Connect(token, userID string) *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil && !m.conn.isClosed() {
		return m.conn
	}
	c := newConn(userID)
	m.conn = c
	go m.run(c, token)
	return c
}

// Disconnect tears down the live connection and clears the reference.
// No-op when no connection exists.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	c := m.conn
	m.conn = nil
	m.mu.Unlock()
	if c != nil {
		c.close()
	}
}

// Socket returns the current connection handle, or nil when logged out.
// Callers must treat nil as "not ready" and skip emitting.
func (m *Manager) Socket() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// run dials, supervises the live session and reconnects with bounded
// attempts and increasing-then-capped delays. It exits when the connection
// is closed or the attempts are exhausted; either way the Conn ends in a
// disconnected state rather than crashing anything.
func (m *Manager) run(c *Conn, token string) {
	if m.opts.TokenValidator != nil {
		if err := m.opts.TokenValidator(token); err != nil {
			c.fireState(StateEvent{Kind: StateConnectError, Err: err})
			c.fireState(StateEvent{Kind: StateReconnectFailed})
			return
		}
	}

	delay := m.opts.ReconnectDelay
	attempt := 0
	connectedOnce := false

	for {
		if c.isClosed() {
			return
		}

		// Every pass after the first dial is a reconnection attempt and
		// waits out the current backoff delay before touching the network.
		if attempt > 0 {
			c.fireState(StateEvent{Kind: StateReconnectAttempt, Attempt: attempt})
			select {
			case <-time.After(delay):
			case <-c.done:
				return
			}
			delay *= 2
			if delay > m.opts.ReconnectDelayMax {
				delay = m.opts.ReconnectDelayMax
			}
		}

		ws, err := m.dial(token, c.UserID)
		if err != nil {
			c.fireState(StateEvent{Kind: StateConnectError, Attempt: attempt, Err: err})
			if attempt >= m.opts.ReconnectAttempts {
				c.fireState(StateEvent{Kind: StateReconnectFailed, Attempt: attempt})
				return
			}
			attempt++
			continue
		}

		c.attach(ws)
		if connectedOnce {
			c.fireState(StateEvent{Kind: StateReconnect, Attempt: attempt})
		}
		c.fireState(StateEvent{Kind: StateConnect})
		connectedOnce = true
		delay = m.opts.ReconnectDelay

		select {
		case <-c.session():
			// Transport dropped; the next pass is a reconnection.
			attempt = 1
		case <-c.done:
			return
		}
	}
}

func (m *Manager) dial(token, userID string) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: m.opts.DialTimeout}

	endpoints := []string{m.opts.URL}
	if m.opts.FallbackURL != "" {
		endpoints = append(endpoints, m.opts.FallbackURL)
	}

	var lastErr error
	for _, endpoint := range endpoints {
		u, err := authURL(endpoint, token, userID)
		if err != nil {
			return nil, err
		}
		ws, resp, err := dialer.Dial(u, nil)
		if err == nil {
			return ws, nil
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		lastErr = err
	}
	return nil, lastErr
}

func authURL(endpoint, token, userID string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
