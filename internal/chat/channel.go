package chat

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/edulink/chat/internal/domain"
)

// updateBuffer bounds the per-channel update queue
const updateBuffer = 64

// UpdateKind identifies a transcript change
type UpdateKind int

const (
	// UpdateSnapshot replaced the whole transcript with room history
	UpdateSnapshot UpdateKind = iota

	// UpdateAppend added one message at the end of the transcript
	UpdateAppend

	// UpdateSendFailed reports a server-rejected send; the transcript is untouched
	UpdateSendFailed
)

// Update tells the screen that the transcript changed or a send failed.
// After a Snapshot or Append the view scrolls to the newest message.
type Update struct {
	Kind    UpdateKind
	Message *domain.Message // set for UpdateAppend
	Err     string          // set for UpdateSendFailed
}

// Channel binds one chat screen to one room over the shared connection.
// The join is emitted immediately when connected, otherwise deferred until
// the connect event fires; it is re-emitted after every reconnect so the
// server restores room membership.
type Channel struct {
	conn       *Conn
	roomID     string
	receiverID string // empty for group rooms
	limiter    *rate.Limiter

	mu         sync.Mutex
	transcript []domain.Message
	seen       map[string]struct{}
	closed     bool

	updates   chan Update
	listeners []*Listener
}

// Open joins roomID on conn and starts receiving. receiverID is empty for
// group rooms. Close the channel when the screen goes away.
func Open(conn *Conn, roomID, receiverID string) *Channel {
	ch := &Channel{
		conn:       conn,
		roomID:     roomID,
		receiverID: receiverID,
		seen:       make(map[string]struct{}),
		updates:    make(chan Update, updateBuffer),
	}
	ch.listeners = append(ch.listeners,
		conn.On(domain.EventPreviousMessages, ch.onSnapshot),
		conn.On(domain.EventNewMessage, ch.onMessage),
		conn.On(domain.EventMessageError, ch.onError),
		conn.OnState(func(ev StateEvent) {
			if ev.Kind == StateReconnect {
				_ = conn.Emit(domain.EventJoinRoom, roomID)
			}
		}),
	)
	_ = conn.EmitOnConnect(domain.EventJoinRoom, roomID)
	return ch
}

// OpenIndividual opens the two-party room between conn's user and peerID
func OpenIndividual(conn *Conn, peerID string) (*Channel, error) {
	if !ValidUserID(conn.UserID) || !ValidUserID(peerID) {
		return nil, ErrInvalidReceiver
	}
	return Open(conn, IndividualRoomID(conn.UserID, peerID), peerID), nil
}

// SetSendLimit throttles outbound sends to r with the given burst.
// Call before the first Send.
func (ch *Channel) SetSendLimit(r rate.Limit, burst int) {
	ch.limiter = rate.NewLimiter(r, burst)
}

// RoomID returns the room this channel is joined to
func (ch *Channel) RoomID() string {
	return ch.roomID
}

// Send validates and emits content to the channel's room. Every violated
// precondition blocks the send before any network emission, so the server
// never receives a message it would have to orphan.
func (ch *Channel) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return ErrMessageTooLong
	}
	if ch.roomID == "" {
		return ErrNoRoom
	}
	if IsIndividualRoomID(ch.roomID) && !ValidUserID(ch.receiverID) {
		return ErrInvalidReceiver
	}
	if !ch.conn.Connected() {
		return ErrNotConnected
	}
	if ch.limiter != nil && !ch.limiter.Allow() {
		return ErrRateLimited
	}
	return ch.conn.Emit(domain.EventSendMessage, domain.SendMessagePayload{
		Content:    content,
		RoomID:     ch.roomID,
		ReceiverID: ch.receiverID,
	})
}

// Messages returns a copy of the transcript in delivery order
func (ch *Channel) Messages() []domain.Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]domain.Message, len(ch.transcript))
	copy(out, ch.transcript)
	return out
}

// Len returns the transcript length
func (ch *Channel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.transcript)
}

// Updates delivers transcript changes and send failures to the screen.
// The queue is bounded; when the screen stops draining, the oldest
// notifications are shed first, so the newest change always comes through.
// An update is a hint to re-read Messages, which stays authoritative.
// The channel is closed by Close.
func (ch *Channel) Updates() <-chan Update {
	return ch.updates
}

// Close detaches every listener this channel registered on the shared
// connection and stops updates. The connection itself stays up; its
// lifetime belongs to authentication, not to this screen.
func (ch *Channel) Close() {
	for _, l := range ch.listeners {
		l.Close()
	}
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.mu.Unlock()
	close(ch.updates)
}

// onSnapshot replaces the transcript with the room history in one shot
func (ch *Channel) onSnapshot(raw json.RawMessage) {
	var msgs []domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return
	}
	if len(msgs) > 0 && msgs[0].RoomID != ch.roomID {
		return
	}
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.transcript = msgs
	ch.seen = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		ch.seen[m.ID] = struct{}{}
	}
	ch.mu.Unlock()
	ch.push(Update{Kind: UpdateSnapshot})
}

// onMessage appends a confirmed message unless its id was already seen.
// Duplicate delivery happens on reconnect; replays must not grow the
// transcript.
func (ch *Channel) onMessage(raw json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.RoomID != ch.roomID {
		return
	}
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	if _, dup := ch.seen[msg.ID]; dup {
		ch.mu.Unlock()
		return
	}
	ch.seen[msg.ID] = struct{}{}
	ch.transcript = append(ch.transcript, msg)
	ch.mu.Unlock()
	ch.push(Update{Kind: UpdateAppend, Message: &msg})
}

func (ch *Channel) onError(raw json.RawMessage) {
	var p domain.MessageErrorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	ch.push(Update{Kind: UpdateSendFailed, Err: p.Error})
}

func (ch *Channel) push(u Update) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	for {
		select {
		case ch.updates <- u:
			return
		default:
		}
		// Screen is not draining; shed the oldest notification rather than
		// block the read pump or lose the newest one. A resumed consumer
		// catches up from Messages.
		select {
		case <-ch.updates:
		default:
		}
	}
}
