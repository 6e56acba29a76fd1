package domain

import "time"

// Message is a server-confirmed chat message. The server assigns ID and
// CreatedAt; clients only append server-confirmed messages to a transcript.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	RoomID     string    `json:"roomId"`
	ReceiverID string    `json:"receiverId,omitempty"` // set for individual rooms only
	CreatedAt  time.Time `json:"createdAt"`
}
