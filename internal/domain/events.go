package domain

import "time"

// EventType represents the type of game event
type EventType string

const (
	EventGameCreated   EventType = "GAME_CREATED"
	EventPlayerJoined  EventType = "PLAYER_JOINED"
	EventPlayerReady   EventType = "PLAYER_READY"
	EventPlayerLeft    EventType = "PLAYER_LEFT"
	EventGameStarted   EventType = "GAME_STARTED"
	EventVoteCast      EventType = "VOTE_CAST"
	EventRoundAdvanced EventType = "ROUND_ADVANCED"
	EventGameCompleted EventType = "GAME_COMPLETED"
	EventGameReset     EventType = "GAME_RESET"
)

// GameEvent is a committed change to a game together with the projection
// subscribers should render
type GameEvent struct {
	Type      EventType `json:"type"`
	GameCode  string    `json:"gameCode"`
	UserID    string    `json:"userId,omitempty"` // Who caused it
	Snapshot  *Snapshot `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a new game event
func NewEvent(eventType EventType, gameCode, userID string, snap *Snapshot, now time.Time) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		GameCode:  gameCode,
		UserID:    userID,
		Snapshot:  snap,
		Timestamp: now,
	}
}
