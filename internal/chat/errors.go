package chat

import "errors"

// Precondition errors returned before anything is emitted. They are meant to
// be shown to the user directly; nothing reaches the server when one fires.
var (
	ErrEmptyMessage    = errors.New("chat: message is empty")
	ErrMessageTooLong  = errors.New("chat: message exceeds maximum length")
	ErrNotConnected    = errors.New("chat: not connected")
	ErrNoRoom          = errors.New("chat: room id is empty")
	ErrInvalidReceiver = errors.New("chat: receiver id is invalid")
	ErrRateLimited     = errors.New("chat: sending too fast")
)
