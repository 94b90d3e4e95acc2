package domain

import "time"

// GameIssue binds a catalog issue to one round of a game
type GameIssue struct {
	Round           int        `json:"round"`
	IssueID         string     `json:"issueId"`
	WinningOptionID string     `json:"winningOptionId,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	Votes           []*Vote    `json:"votes"`
}

// NewGameIssue creates an unresolved round binding
func NewGameIssue(round int, issueID string) *GameIssue {
	return &GameIssue{
		Round:   round,
		IssueID: issueID,
		Votes:   make([]*Vote, 0),
	}
}

// UpsertVote records a vote, overwriting any previous vote by the same
// player on the same option
func (gi *GameIssue) UpsertVote(playerID, optionID string, approve bool, now time.Time) *Vote {
	for _, v := range gi.Votes {
		if v.PlayerID == playerID && v.OptionID == optionID {
			v.Approve = approve
			v.VotedAt = now
			return v
		}
	}

	vote := NewVote(playerID, optionID, approve, now)
	gi.Votes = append(gi.Votes, vote)
	return vote
}

// Voters returns the set of player IDs with at least one vote
func (gi *GameIssue) Voters() map[string]bool {
	voters := make(map[string]bool)
	for _, v := range gi.Votes {
		voters[v.PlayerID] = true
	}
	return voters
}

// IsResolved reports whether a winner has been recorded
func (gi *GameIssue) IsResolved() bool {
	return gi.WinningOptionID != ""
}

// RoundResult is the history entry for one resolved round
type RoundResult struct {
	Round               int       `json:"round"`
	IssueID             string    `json:"issueId"`
	IssueTitle          string    `json:"issueTitle"`
	WinningOptionID     string    `json:"winningOptionId"`
	WinningOptionLetter string    `json:"winningOptionLetter"`
	WinningOptionText   string    `json:"winningOptionText"`
	Favors              []string  `json:"favors"`
	Opposes             []string  `json:"opposes"`
	Tally               Tally     `json:"tally"`
	ResolvedAt          time.Time `json:"resolvedAt"`
}
