package domain

import "time"

// ==== Message Constants ====

// MaxContentLength is the maximum chat message length in runes after trimming
const MaxContentLength = 500

// MaxHistorySize is the maximum number of messages kept per room for snapshots
const MaxHistorySize = 200

// ==== Connection Constants ====

const (
	// DefaultReconnectAttempts bounds automatic reconnection tries
	DefaultReconnectAttempts = 10

	// DefaultReconnectDelay is the initial delay between reconnection attempts
	DefaultReconnectDelay = time.Second

	// DefaultReconnectDelayMax caps the growing delay between attempts
	DefaultReconnectDelayMax = 30 * time.Second

	// DefaultDialTimeout aborts a single connection attempt
	DefaultDialTimeout = 20 * time.Second
)

// ==== Presence Constants ====

// DefaultPresenceInterval is how often an open chat re-checks peer status
const DefaultPresenceInterval = 30 * time.Second
