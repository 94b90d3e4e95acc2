package domain

import (
	"slices"
	"sort"
	"time"
)

// GameSummary is the public header of a game
type GameSummary struct {
	Code         string     `json:"code"`
	HostID       string     `json:"hostId"`
	Status       Status     `json:"status"`
	CurrentRound int        `json:"currentRound"`
	TotalRounds  int        `json:"totalRounds"`
	PlayerCount  int        `json:"playerCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// PlayerView is a player joined with its country
type PlayerView struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Country     Country `json:"country"`
	Ready       bool    `json:"ready"`
	HasVoted    bool    `json:"hasVoted"`
	Phase1Score int     `json:"phase1Score"`
	Phase2Score int     `json:"phase2Score"`
	TotalScore  int     `json:"totalScore"`
	IsHost      bool    `json:"isHost"`
}

// LobbyView is the pre-game projection
type LobbyView struct {
	Game               GameSummary  `json:"game"`
	Players            []PlayerView `json:"players"`
	AvailableCountries []Country    `json:"availableCountries"`
	CanStart           bool         `json:"canStart"`
}

// VoteView is a vote on the current issue
type VoteView struct {
	PlayerID    string `json:"playerId"`
	CountryCode string `json:"countryCode"`
	OptionID    string `json:"optionId"`
	Approve     bool   `json:"approve"`
}

// StateView is the in-game projection
type StateView struct {
	Game         GameSummary  `json:"game"`
	Players      []PlayerView `json:"players"` // Score desc, join order on ties
	CurrentIssue *Issue       `json:"currentIssue,omitempty"`
	Votes        []VoteView   `json:"votes"`
	Tally        Tally        `json:"tally,omitempty"`
	VotedCount   int          `json:"votedCount"`
	AllVoted     bool         `json:"allVoted"`
}

// StandingView is a player's final standing
type StandingView struct {
	PlayerView
	Rank            int `json:"rank"`
	RoundsFavored   int `json:"roundsFavored"`
	RoundsOpposed   int `json:"roundsOpposed"`
	ApprovedWinners int `json:"approvedWinners"`
}

// ResultsView is the standings and round history projection
type ResultsView struct {
	Game      GameSummary    `json:"game"`
	Standings []StandingView `json:"standings"`
	Rounds    []*RoundResult `json:"rounds"`
}

// Snapshot is the projection matching a game's status. It is the payload of
// every notification.
type Snapshot struct {
	Code    string       `json:"code"`
	Status  Status       `json:"status"`
	Lobby   *LobbyView   `json:"lobby,omitempty"`
	State   *StateView   `json:"state,omitempty"`
	Results *ResultsView `json:"results,omitempty"`
}

func buildSummary(g *Game) GameSummary {
	return GameSummary{
		Code:         g.Code,
		HostID:       g.HostID,
		Status:       g.Status,
		CurrentRound: g.CurrentRound,
		TotalRounds:  g.TotalRounds(),
		PlayerCount:  len(g.Players),
		CreatedAt:    g.CreatedAt,
		StartedAt:    cloneTime(g.StartedAt),
		CompletedAt:  cloneTime(g.CompletedAt),
	}
}

func buildPlayerViews(g *Game, catalog Catalog, voters map[string]bool) []PlayerView {
	views := make([]PlayerView, 0, len(g.Players))
	for _, p := range g.Players {
		country, ok := catalog.Country(p.CountryCode)
		if !ok {
			country = Country{Code: p.CountryCode, Name: p.CountryCode}
		}
		views = append(views, PlayerView{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Country:     country,
			Ready:       p.Ready,
			HasVoted:    voters[p.ID],
			Phase1Score: p.Phase1Score,
			Phase2Score: p.Phase2Score,
			TotalScore:  p.TotalScore,
			IsHost:      g.IsHost(p.UserID),
		})
	}
	return views
}

func sortByScore(views []PlayerView) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].TotalScore > views[j].TotalScore
	})
}

// BuildLobbyView projects the lobby: players in join order and the countries
// nobody has claimed yet
func BuildLobbyView(g *Game, catalog Catalog) *LobbyView {
	available := make([]Country, 0)
	for _, c := range catalog.Countries() {
		if _, taken := g.PlayerByCountry(c.Code); !taken {
			available = append(available, c)
		}
	}

	return &LobbyView{
		Game:               buildSummary(g),
		Players:            buildPlayerViews(g, catalog, nil),
		AvailableCountries: available,
		CanStart:           g.CanStart(),
	}
}

// BuildStateView projects the game in progress
func BuildStateView(g *Game, catalog Catalog) *StateView {
	view := &StateView{
		Game:  buildSummary(g),
		Votes: make([]VoteView, 0),
	}

	var voters map[string]bool
	if current, err := g.CurrentIssue(); err == nil {
		voters = current.Voters()
		if issue, ok := catalog.Issue(current.IssueID); ok {
			view.CurrentIssue = &issue
			view.Tally = TallyVotes(issue.Options, current.Votes)
		}
		for _, v := range current.Votes {
			vv := VoteView{PlayerID: v.PlayerID, OptionID: v.OptionID, Approve: v.Approve}
			if p, ok := g.PlayerByID(v.PlayerID); ok {
				vv.CountryCode = p.CountryCode
			}
			view.Votes = append(view.Votes, vv)
		}
		view.VotedCount = g.VotedCount()
		view.AllVoted = g.AllVoted()
	}

	view.Players = buildPlayerViews(g, catalog, voters)
	sortByScore(view.Players)

	return view
}

// BuildResultsView projects standings and the round history. Ranks are
// shared by players on equal totals.
func BuildResultsView(g *Game, catalog Catalog) *ResultsView {
	players := buildPlayerViews(g, catalog, nil)
	sortByScore(players)

	standings := make([]StandingView, 0, len(players))
	for i, pv := range players {
		standing := StandingView{PlayerView: pv, Rank: i + 1}
		if i > 0 && pv.TotalScore == standings[i-1].TotalScore {
			standing.Rank = standings[i-1].Rank
		}

		for _, r := range g.History {
			if slices.Contains(r.Favors, pv.Country.Code) {
				standing.RoundsFavored++
			}
			if slices.Contains(r.Opposes, pv.Country.Code) {
				standing.RoundsOpposed++
			}
		}
		standing.ApprovedWinners = approvedWinners(g, pv.ID)

		standings = append(standings, standing)
	}

	rounds := make([]*RoundResult, len(g.History))
	copy(rounds, g.History)
	sort.SliceStable(rounds, func(i, j int) bool {
		return rounds[i].Round < rounds[j].Round
	})

	return &ResultsView{
		Game:      buildSummary(g),
		Standings: standings,
		Rounds:    rounds,
	}
}

// BuildSnapshot projects the game according to its status
func BuildSnapshot(g *Game, catalog Catalog) *Snapshot {
	snap := &Snapshot{Code: g.Code, Status: g.Status}
	switch g.Status {
	case StatusLobby:
		snap.Lobby = BuildLobbyView(g, catalog)
	case StatusActive:
		snap.State = BuildStateView(g, catalog)
	case StatusComplete:
		snap.State = BuildStateView(g, catalog)
		snap.Results = BuildResultsView(g, catalog)
	}
	return snap
}

func approvedWinners(g *Game, playerID string) int {
	count := 0
	for _, gi := range g.Issues {
		if !gi.IsResolved() {
			continue
		}
		for _, v := range gi.Votes {
			if v.PlayerID == playerID && v.OptionID == gi.WinningOptionID && v.Approve {
				count++
				break
			}
		}
	}
	return count
}
