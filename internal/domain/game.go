package domain

import (
	"strings"
	"time"
)

// Game is a conference session and the aggregate root for its players,
// rounds and votes
type Game struct {
	Code         string         `json:"code"`
	HostID       string         `json:"hostId"`
	Status       Status         `json:"status"`
	CurrentRound int            `json:"currentRound"`
	Players      []*Player      `json:"players"` // Join order
	Issues       []*GameIssue   `json:"issues"`
	History      []*RoundResult `json:"history"`
	CreatedAt    time.Time      `json:"createdAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// NewGame creates a new game in the lobby
func NewGame(code, hostID string, now time.Time) *Game {
	return &Game{
		Code:         code,
		HostID:       hostID,
		Status:       StatusLobby,
		CurrentRound: 0,
		Players:      make([]*Player, 0),
		Issues:       make([]*GameIssue, 0),
		History:      make([]*RoundResult, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeCode canonicalizes a user supplied game code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsHost checks if the given user is the host
func (g *Game) IsHost(userID string) bool {
	return userID != "" && g.HostID == userID
}

// IsParticipant checks if the given user is the host or holds a seat
func (g *Game) IsParticipant(userID string) bool {
	if g.IsHost(userID) {
		return true
	}
	_, err := g.PlayerByUser(userID)
	return err == nil
}

// PlayerByUser returns the player seated for a user
func (g *Game) PlayerByUser(userID string) (*Player, error) {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrPlayerNotFound
}

// PlayerByID returns a player by player ID
func (g *Game) PlayerByID(playerID string) (*Player, bool) {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// PlayerByCountry returns the player holding a country
func (g *Game) PlayerByCountry(countryCode string) (*Player, bool) {
	for _, p := range g.Players {
		if p.CountryCode == countryCode {
			return p, true
		}
	}
	return nil, false
}

// SelectCountry seats a user as a country. Re-selecting the country the user
// already holds is a no-op apart from refreshing the display name.
func (g *Game) SelectCountry(playerID, userID, displayName string, country Country, now time.Time) (*Player, error) {
	if g.Status != StatusLobby {
		return nil, ErrGameNotInLobby
	}

	if holder, ok := g.PlayerByCountry(country.Code); ok {
		if holder.UserID != userID {
			return nil, ErrCountryTaken
		}
		if displayName != "" && holder.DisplayName != displayName {
			holder.DisplayName = displayName
			g.UpdatedAt = now
		}
		return holder, nil
	}

	if _, err := g.PlayerByUser(userID); err == nil {
		return nil, ErrAlreadySeated
	}

	player := NewPlayer(playerID, userID, displayName, country.Code, now)
	g.Players = append(g.Players, player)
	g.UpdatedAt = now

	return player, nil
}

// SetReady marks a user's player as ready
func (g *Game) SetReady(userID string, now time.Time) (*Player, error) {
	player, err := g.PlayerByUser(userID)
	if err != nil {
		return nil, err
	}
	if !player.Ready {
		player.Ready = true
		g.UpdatedAt = now
	}
	return player, nil
}

// RemovePlayer frees a user's seat while the game is in the lobby
func (g *Game) RemovePlayer(userID string, now time.Time) error {
	if g.Status != StatusLobby {
		return ErrGameNotInLobby
	}

	for i, p := range g.Players {
		if p.UserID == userID {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			g.UpdatedAt = now
			return nil
		}
	}
	return ErrPlayerNotFound
}

// AllReady checks if there is at least one player and every player is ready
func (g *Game) AllReady() bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// CanStart checks if the game can be started
func (g *Game) CanStart() bool {
	return g.Status == StatusLobby && g.AllReady()
}

// Start materializes one round per issue in the given order and opens round 1
func (g *Game) Start(requesterID string, issues []Issue, now time.Time) error {
	if !g.IsHost(requesterID) {
		return ErrNotHost
	}
	if !g.Status.CanTransitionTo(StatusActive) {
		return ErrGameNotInLobby
	}
	if len(g.Players) == 0 {
		return ErrNoPlayers
	}
	if !g.AllReady() {
		return ErrPlayersNotReady
	}
	if len(issues) == 0 {
		return ErrNoIssues
	}

	g.Issues = make([]*GameIssue, 0, len(issues))
	for i, issue := range issues {
		g.Issues = append(g.Issues, NewGameIssue(i+1, issue.ID))
	}
	g.History = make([]*RoundResult, 0, len(issues))

	g.clearReadiness()
	g.Status = StatusActive
	g.CurrentRound = 1
	startedAt := now
	g.StartedAt = &startedAt
	g.CompletedAt = nil
	g.UpdatedAt = now

	return nil
}

// TotalRounds returns the number of rounds bound to this game
func (g *Game) TotalRounds() int {
	return len(g.Issues)
}

// CurrentIssue returns the round binding being voted on
func (g *Game) CurrentIssue() (*GameIssue, error) {
	if g.Status != StatusActive {
		return nil, ErrGameNotActive
	}
	idx := g.CurrentRound - 1
	if idx < 0 || idx >= len(g.Issues) {
		return nil, ErrNoCurrentIssue
	}
	return g.Issues[idx], nil
}

// CastVote upserts a user's approve/reject on an option of the current issue.
// issue must be the catalog entry for the current round.
func (g *Game) CastVote(userID, optionID string, approve bool, issue Issue, now time.Time) (*Vote, error) {
	if g.Status != StatusActive {
		return nil, ErrGameNotActive
	}

	player, err := g.PlayerByUser(userID)
	if err != nil {
		return nil, err
	}

	current, err := g.CurrentIssue()
	if err != nil {
		return nil, err
	}
	if current.IssueID != issue.ID {
		return nil, ErrNoCurrentIssue
	}

	if _, ok := issue.Option(optionID); !ok {
		return nil, ErrOptionNotFound
	}

	vote := current.UpsertVote(player.ID, optionID, approve, now)
	g.UpdatedAt = now

	return vote, nil
}

// VotedCount returns how many current players voted in the current round
func (g *Game) VotedCount() int {
	current, err := g.CurrentIssue()
	if err != nil {
		return 0
	}
	voters := current.Voters()
	count := 0
	for _, p := range g.Players {
		if voters[p.ID] {
			count++
		}
	}
	return count
}

// AllVoted checks if every player has at least one vote in the current round
func (g *Game) AllVoted() bool {
	return len(g.Players) > 0 && g.VotedCount() == len(g.Players)
}

// AdvanceRound resolves the current round: tallies approvals, scores every
// player against the winning option, records history and moves to the next
// round or completes the game. issue must be the catalog entry for the
// current round.
func (g *Game) AdvanceRound(requesterID string, issue Issue, now time.Time) (*RoundResult, error) {
	// Only an active game can move on, or finish
	if !g.Status.CanTransitionTo(StatusComplete) {
		return nil, ErrGameNotActive
	}
	if !g.IsParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	current, err := g.CurrentIssue()
	if err != nil {
		return nil, err
	}
	if current.IssueID != issue.ID {
		return nil, ErrNoCurrentIssue
	}

	if !g.AllVoted() {
		return nil, ErrNotAllVoted
	}

	tally := TallyVotes(issue.Options, current.Votes)
	winner, ok := PickWinner(issue, tally)
	if !ok {
		return nil, ErrOptionNotFound
	}

	for _, p := range g.Players {
		if delta := ScoreDelta(winner, p.CountryCode); delta != 0 {
			p.AddPhase1Points(delta)
		}
	}

	resolvedAt := now
	current.WinningOptionID = winner.ID
	current.ResolvedAt = &resolvedAt

	result := &RoundResult{
		Round:               current.Round,
		IssueID:             issue.ID,
		IssueTitle:          issue.Title,
		WinningOptionID:     winner.ID,
		WinningOptionLetter: winner.Letter,
		WinningOptionText:   winner.Text,
		Favors:              append([]string(nil), winner.Favors...),
		Opposes:             append([]string(nil), winner.Opposes...),
		Tally:               tally,
		ResolvedAt:          now,
	}
	g.History = append(g.History, result)

	if g.CurrentRound >= len(g.Issues) {
		g.Status = StatusComplete
		completedAt := now
		g.CompletedAt = &completedAt
	} else {
		g.CurrentRound++
		g.clearReadiness()
	}
	g.UpdatedAt = now

	return result, nil
}

// Reset returns the game to the lobby keeping its code and roster
func (g *Game) Reset(requesterID string, now time.Time) error {
	if !g.IsHost(requesterID) {
		return ErrNotHost
	}
	// A lobby reset only clears scores and readiness
	if g.Status != StatusLobby && !g.Status.CanTransitionTo(StatusLobby) {
		return ErrCannotReset
	}

	for _, p := range g.Players {
		p.ResetScores()
	}
	g.clearReadiness()

	g.Issues = make([]*GameIssue, 0)
	g.History = make([]*RoundResult, 0)
	g.Status = StatusLobby
	g.CurrentRound = 0
	g.StartedAt = nil
	g.CompletedAt = nil
	g.UpdatedAt = now

	return nil
}

func (g *Game) clearReadiness() {
	for _, p := range g.Players {
		p.Ready = false
	}
}

// Clone returns a deep copy of the game
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}

	clone := *g
	clone.StartedAt = cloneTime(g.StartedAt)
	clone.CompletedAt = cloneTime(g.CompletedAt)

	clone.Players = make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		player := *p
		clone.Players = append(clone.Players, &player)
	}

	clone.Issues = make([]*GameIssue, 0, len(g.Issues))
	for _, gi := range g.Issues {
		issue := *gi
		issue.ResolvedAt = cloneTime(gi.ResolvedAt)
		issue.Votes = make([]*Vote, 0, len(gi.Votes))
		for _, v := range gi.Votes {
			vote := *v
			issue.Votes = append(issue.Votes, &vote)
		}
		clone.Issues = append(clone.Issues, &issue)
	}

	clone.History = make([]*RoundResult, 0, len(g.History))
	for _, r := range g.History {
		result := *r
		result.Favors = append([]string(nil), r.Favors...)
		result.Opposes = append([]string(nil), r.Opposes...)
		result.Tally = make(Tally, len(r.Tally))
		for k, v := range r.Tally {
			result.Tally[k] = v
		}
		clone.History = append(clone.History, &result)
	}

	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
