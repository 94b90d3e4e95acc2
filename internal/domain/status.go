package domain

// Status represents the lifecycle stage of a game
type Status string

const (
	StatusLobby    Status = "lobby"    // Players picking countries
	StatusActive   Status = "active"   // Rounds in progress
	StatusComplete Status = "complete" // Every issue resolved
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from current status to target status is valid
func (s Status) CanTransitionTo(target Status) bool {
	validTransitions := map[Status][]Status{
		StatusLobby:    {StatusActive},
		StatusActive:   {StatusComplete, StatusLobby}, // Lobby via reset
		StatusComplete: {StatusLobby},                 // Reset only
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}
