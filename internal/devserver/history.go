package devserver

import "github.com/edulink/chat/internal/domain"

// History is a fixed-capacity ring of messages for one room, oldest dropped
// first. It backs the previous_messages snapshot sent on join.
type History struct {
	data []domain.Message
	head int // next write position
	size int
}

// NewHistory creates a history ring with the given capacity, at least 1
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{data: make([]domain.Message, capacity)}
}

// Add appends a message, overwriting the oldest when full
func (h *History) Add(msg domain.Message) {
	h.data[h.head] = msg
	h.head = (h.head + 1) % len(h.data)
	if h.size < len(h.data) {
		h.size++
	}
}

// All returns the stored messages in arrival order, oldest first
func (h *History) All() []domain.Message {
	out := make([]domain.Message, 0, h.size)
	if h.size < len(h.data) {
		out = append(out, h.data[:h.size]...)
		return out
	}
	out = append(out, h.data[h.head:]...)
	out = append(out, h.data[:h.head]...)
	return out
}

// Len returns the number of stored messages
func (h *History) Len() int {
	return h.size
}
