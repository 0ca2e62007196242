package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lox/crazyeights/internal/game"
)

// ErrEmptyPayload is returned when decoding a message without data
var ErrEmptyPayload = errors.New("message has no payload")

// MessageType identifies the payload carried by a Message
type MessageType string

const (
	// Client -> Relay
	TypeJoin  MessageType = "join"
	TypeLeave MessageType = "leave"

	// Relay -> Client
	TypeRoomData        MessageType = "room_data"
	TypeCurrentUserData MessageType = "current_user_data"
	TypeRoomFull        MessageType = "room_full"
	TypeError           MessageType = "error"

	// Peer -> Relay -> Peer. The relay forwards these untouched.
	TypeInitGameState   MessageType = "init_game_state"
	TypeUpdateGameState MessageType = "update_game_state"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Relayed reports whether the relay forwards this type to the peer
func (mt MessageType) Relayed() bool {
	return mt == TypeInitGameState || mt == TypeUpdateGameState
}

// Message is the envelope of every websocket frame
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &Message{
		Type:      messageType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

// Decode unmarshals the payload into v
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Data, v)
}

// Client -> Relay

// JoinData asks for a seat in a room. An empty Room creates a new one.
type JoinData struct {
	Room string `json:"room"`
	Name string `json:"name,omitempty"`
}

// Relay -> Client

// User is one participant of a room
type User struct {
	Name   string      `json:"name"`
	Player game.Player `json:"player"`
}

// RoomData lists the participants of a room, sent whenever it changes
type RoomData struct {
	Room  string `json:"room"`
	Users []User `json:"users"`
}

// Full reports whether both seats are taken
func (r RoomData) Full() bool {
	return len(r.Users) == 2
}

// CurrentUserData tells a client which seat it was given
type CurrentUserData struct {
	Room   string      `json:"room"`
	Name   string      `json:"name"`
	Player game.Player `json:"player"`
}

// ErrorData describes a failure reported by the relay
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
