package domain

import "time"

// Vote is a player's approve/reject on one option of the current issue
type Vote struct {
	PlayerID string    `json:"playerId"`
	OptionID string    `json:"optionId"`
	Approve  bool      `json:"approve"`
	VotedAt  time.Time `json:"votedAt"`
}

// NewVote creates a new vote
func NewVote(playerID, optionID string, approve bool, votedAt time.Time) *Vote {
	return &Vote{
		PlayerID: playerID,
		OptionID: optionID,
		Approve:  approve,
		VotedAt:  votedAt,
	}
}

// Tally counts approvals per option ID
type Tally map[string]int

// TallyVotes counts approve votes for each option. Every option gets an entry,
// votes for unknown options are ignored.
func TallyVotes(options []Option, votes []*Vote) Tally {
	tally := make(Tally, len(options))
	for _, o := range options {
		tally[o.ID] = 0
	}
	for _, v := range votes {
		if !v.Approve {
			continue
		}
		if _, ok := tally[v.OptionID]; ok {
			tally[v.OptionID]++
		}
	}
	return tally
}

// PickWinner returns the option with the most approvals. Ties go to the
// first option in letter order reaching the maximum.
func PickWinner(issue Issue, tally Tally) (Option, bool) {
	var winner Option
	best := -1
	for _, o := range issue.OptionsByLetter() {
		if count := tally[o.ID]; count > best {
			best = count
			winner = o
		}
	}
	return winner, best >= 0
}

// Round scoring
const (
	FavoredPoints = 10
	OpposedPoints = -5
)

// ScoreDelta is the score change for a country when the option wins.
// A country listed in both sets receives both deltas.
func ScoreDelta(winner Option, countryCode string) int {
	delta := 0
	if winner.FavorsCountry(countryCode) {
		delta += FavoredPoints
	}
	if winner.OpposesCountry(countryCode) {
		delta += OpposedPoints
	}
	return delta
}
