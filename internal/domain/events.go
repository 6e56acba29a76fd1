package domain

import "encoding/json"

// Events emitted by the client over the shared connection
const (
	EventJoinRoom        = "join_room"
	EventSendMessage     = "send_message"
	EventCheckUserStatus = "check_user_status"
)

// Events delivered by the server
const (
	EventPreviousMessages = "previous_messages"
	EventNewMessage       = "new_message"
	EventMessageError     = "message_error"
	EventUserStatus       = "user_status"
)

// Envelope is the wire frame: one event name plus its JSON payload.
// Every websocket text frame carries exactly one envelope.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope for event
func NewEnvelope(event string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// SendMessagePayload is the payload for send_message
type SendMessagePayload struct {
	Content    string `json:"content"`
	RoomID     string `json:"roomId"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// MessageErrorPayload is the payload for message_error
type MessageErrorPayload struct {
	Error string `json:"error"`
}

// UserStatusPayload is the payload for user_status
type UserStatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
