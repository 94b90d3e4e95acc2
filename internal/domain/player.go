package domain

import "time"

// Player is a user seated at a game as one country
type Player struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	CountryCode string    `json:"countryCode"`
	Ready       bool      `json:"ready"`
	Phase1Score int       `json:"phase1Score"`
	Phase2Score int       `json:"phase2Score"` // Reserved, never scored
	TotalScore  int       `json:"totalScore"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// NewPlayer creates a new, not ready player
func NewPlayer(id, userID, displayName, countryCode string, joinedAt time.Time) *Player {
	if displayName == "" {
		displayName = userID
	}
	return &Player{
		ID:          id,
		UserID:      userID,
		DisplayName: displayName,
		CountryCode: countryCode,
		Ready:       false,
		JoinedAt:    joinedAt,
	}
}

// AddPhase1Points applies a round score delta and refreshes the total
func (p *Player) AddPhase1Points(delta int) {
	p.Phase1Score += delta
	p.TotalScore = p.Phase1Score + p.Phase2Score
}

// ResetScores zeroes every score
func (p *Player) ResetScores() {
	p.Phase1Score = 0
	p.Phase2Score = 0
	p.TotalScore = 0
}
