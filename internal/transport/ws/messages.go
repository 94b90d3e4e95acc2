package ws

import (
	"encoding/json"
	"time"

	"brettonwoods/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgSelectCountry MessageType = "select_country"
	MsgSetReady      MessageType = "set_ready"
	MsgLeave         MessageType = "leave"
	MsgStartGame     MessageType = "start_game"
	MsgSubmitVote    MessageType = "submit_vote"
	MsgNextRound     MessageType = "next_round"
	MsgResetGame     MessageType = "reset_game"
	MsgPing          MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected MessageType = "connected"
	MsgSnapshot  MessageType = "snapshot"
	MsgError     MessageType = "error"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// SelectCountryPayload is the payload for select_country message
type SelectCountryPayload struct {
	CountryCode string `json:"countryCode"`
	DisplayName string `json:"displayName"`
}

// SubmitVotePayload is the payload for submit_vote message
type SubmitVotePayload struct {
	OptionID string `json:"optionId"`
	Approve  *bool  `json:"approve"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	UserID   string           `json:"userId"`
	GameCode string           `json:"gameCode"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

// SnapshotPayload is the payload for snapshot message
type SnapshotPayload struct {
	Event    domain.EventType `json:"event"`
	UserID   string           `json:"userId,omitempty"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes not produced by the engine
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
)
