package chat

import "strings"

// individualRoomPrefix tags two-party rooms
const individualRoomPrefix = "individual_"

// IndividualRoomID derives the canonical room id for a two-party chat.
// The ids are sorted before concatenation, so both participants compute
// the same id no matter who opens the chat first.
func IndividualRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return individualRoomPrefix + a + "_" + b
}

// IsIndividualRoomID reports whether roomID names a two-party room
func IsIndividualRoomID(roomID string) bool {
	return strings.HasPrefix(roomID, individualRoomPrefix)
}

// ValidUserID reports whether id can identify a chat participant.
// Empty strings and the unresolved-identity placeholders some clients
// serialize are rejected; callers must check this before resolving a room.
func ValidUserID(id string) bool {
	switch strings.TrimSpace(id) {
	case "", "undefined", "null":
		return false
	}
	return true
}
