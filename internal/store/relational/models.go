package relational

import (
	"encoding/json"
	"strings"
	"time"

	"brettonwoods/internal/domain"
)

type gameModel struct {
	Code         string     `gorm:"column:code;primaryKey;size:16"`
	HostID       string     `gorm:"column:host_id;not null"`
	Status       string     `gorm:"column:status;size:16;not null;index"`
	CurrentRound int        `gorm:"column:current_round;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime:false;index"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (gameModel) TableName() string {
	return "games"
}

type playerModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	GameCode    string    `gorm:"column:game_code;size:16;not null;uniqueIndex:idx_players_game_country;uniqueIndex:idx_players_game_user"`
	Seq         int       `gorm:"column:seq;not null"`
	UserID      string    `gorm:"column:user_id;not null;uniqueIndex:idx_players_game_user"`
	DisplayName string    `gorm:"column:display_name"`
	CountryCode string    `gorm:"column:country_code;size:8;not null;uniqueIndex:idx_players_game_country"`
	Ready       bool      `gorm:"column:is_ready;not null"`
	Phase1Score int       `gorm:"column:phase1_score;not null"`
	Phase2Score int       `gorm:"column:phase2_score;not null"`
	TotalScore  int       `gorm:"column:total_score;not null"`
	JoinedAt    time.Time `gorm:"column:joined_at"`
}

func (playerModel) TableName() string {
	return "players"
}

type gameIssueModel struct {
	GameCode        string     `gorm:"column:game_code;primaryKey;size:16"`
	RoundNumber     int        `gorm:"column:round_number;primaryKey;autoIncrement:false"`
	IssueID         string     `gorm:"column:issue_id;not null"`
	WinningOptionID string     `gorm:"column:winning_option_id"`
	ResolvedAt      *time.Time `gorm:"column:completed_at"`
}

func (gameIssueModel) TableName() string {
	return "game_issues"
}

type voteModel struct {
	GameCode    string    `gorm:"column:game_code;primaryKey;size:16"`
	RoundNumber int       `gorm:"column:round_number;primaryKey;autoIncrement:false"`
	PlayerID    string    `gorm:"column:player_id;primaryKey"`
	OptionID    string    `gorm:"column:option_id;primaryKey"`
	Approve     bool      `gorm:"column:vote_value;not null"`
	VotedAt     time.Time `gorm:"column:voted_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

type roundResultModel struct {
	GameCode            string    `gorm:"column:game_code;primaryKey;size:16"`
	RoundNumber         int       `gorm:"column:round_number;primaryKey;autoIncrement:false"`
	IssueID             string    `gorm:"column:issue_id;not null"`
	IssueTitle          string    `gorm:"column:issue_title"`
	WinningOptionID     string    `gorm:"column:winning_option_id;not null"`
	WinningOptionLetter string    `gorm:"column:option_letter"`
	WinningOptionText   string    `gorm:"column:option_text"`
	Favors              string    `gorm:"column:favors_countries"`
	Opposes             string    `gorm:"column:opposes_countries"`
	Tally               string    `gorm:"column:tally"`
	ResolvedAt          time.Time `gorm:"column:resolved_at"`
}

func (roundResultModel) TableName() string {
	return "round_results"
}

func allModels() []any {
	return []any{
		&gameModel{},
		&playerModel{},
		&gameIssueModel{},
		&voteModel{},
		&roundResultModel{},
	}
}

// aggregateRows is a game flattened into table rows
type aggregateRows struct {
	game    gameModel
	players []playerModel
	issues  []gameIssueModel
	votes   []voteModel
	results []roundResultModel
}

func rowsFromGame(g *domain.Game) (aggregateRows, error) {
	rows := aggregateRows{
		game: gameModel{
			Code:         g.Code,
			HostID:       g.HostID,
			Status:       string(g.Status),
			CurrentRound: g.CurrentRound,
			CreatedAt:    g.CreatedAt,
			StartedAt:    g.StartedAt,
			CompletedAt:  g.CompletedAt,
			UpdatedAt:    g.UpdatedAt,
		},
	}

	for i, p := range g.Players {
		rows.players = append(rows.players, playerModel{
			ID:          p.ID,
			GameCode:    g.Code,
			Seq:         i,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			CountryCode: p.CountryCode,
			Ready:       p.Ready,
			Phase1Score: p.Phase1Score,
			Phase2Score: p.Phase2Score,
			TotalScore:  p.TotalScore,
			JoinedAt:    p.JoinedAt,
		})
	}

	for _, gi := range g.Issues {
		rows.issues = append(rows.issues, gameIssueModel{
			GameCode:        g.Code,
			RoundNumber:     gi.Round,
			IssueID:         gi.IssueID,
			WinningOptionID: gi.WinningOptionID,
			ResolvedAt:      gi.ResolvedAt,
		})
		for _, v := range gi.Votes {
			rows.votes = append(rows.votes, voteModel{
				GameCode:    g.Code,
				RoundNumber: gi.Round,
				PlayerID:    v.PlayerID,
				OptionID:    v.OptionID,
				Approve:     v.Approve,
				VotedAt:     v.VotedAt,
			})
		}
	}

	for _, r := range g.History {
		tally, err := json.Marshal(r.Tally)
		if err != nil {
			return aggregateRows{}, err
		}
		rows.results = append(rows.results, roundResultModel{
			GameCode:            g.Code,
			RoundNumber:         r.Round,
			IssueID:             r.IssueID,
			IssueTitle:          r.IssueTitle,
			WinningOptionID:     r.WinningOptionID,
			WinningOptionLetter: r.WinningOptionLetter,
			WinningOptionText:   r.WinningOptionText,
			Favors:              strings.Join(r.Favors, ","),
			Opposes:             strings.Join(r.Opposes, ","),
			Tally:               string(tally),
			ResolvedAt:          r.ResolvedAt,
		})
	}

	return rows, nil
}

// toGame assembles the aggregate. Rows must be ordered: players by seq,
// issues and results by round.
func (rows aggregateRows) toGame() (*domain.Game, error) {
	g := &domain.Game{
		Code:         rows.game.Code,
		HostID:       rows.game.HostID,
		Status:       domain.Status(rows.game.Status),
		CurrentRound: rows.game.CurrentRound,
		Players:      make([]*domain.Player, 0, len(rows.players)),
		Issues:       make([]*domain.GameIssue, 0, len(rows.issues)),
		History:      make([]*domain.RoundResult, 0, len(rows.results)),
		CreatedAt:    rows.game.CreatedAt,
		StartedAt:    rows.game.StartedAt,
		CompletedAt:  rows.game.CompletedAt,
		UpdatedAt:    rows.game.UpdatedAt,
	}

	for _, p := range rows.players {
		g.Players = append(g.Players, &domain.Player{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			CountryCode: p.CountryCode,
			Ready:       p.Ready,
			Phase1Score: p.Phase1Score,
			Phase2Score: p.Phase2Score,
			TotalScore:  p.TotalScore,
			JoinedAt:    p.JoinedAt,
		})
	}

	byRound := make(map[int]*domain.GameIssue, len(rows.issues))
	for _, gi := range rows.issues {
		issue := &domain.GameIssue{
			Round:           gi.RoundNumber,
			IssueID:         gi.IssueID,
			WinningOptionID: gi.WinningOptionID,
			ResolvedAt:      gi.ResolvedAt,
			Votes:           make([]*domain.Vote, 0),
		}
		byRound[gi.RoundNumber] = issue
		g.Issues = append(g.Issues, issue)
	}
	for _, v := range rows.votes {
		issue, ok := byRound[v.RoundNumber]
		if !ok {
			continue
		}
		issue.Votes = append(issue.Votes, domain.NewVote(v.PlayerID, v.OptionID, v.Approve, v.VotedAt))
	}

	for _, r := range rows.results {
		tally := make(domain.Tally)
		if r.Tally != "" {
			if err := json.Unmarshal([]byte(r.Tally), &tally); err != nil {
				return nil, err
			}
		}
		g.History = append(g.History, &domain.RoundResult{
			Round:               r.RoundNumber,
			IssueID:             r.IssueID,
			IssueTitle:          r.IssueTitle,
			WinningOptionID:     r.WinningOptionID,
			WinningOptionLetter: r.WinningOptionLetter,
			WinningOptionText:   r.WinningOptionText,
			Favors:              splitCodes(r.Favors),
			Opposes:             splitCodes(r.Opposes),
			Tally:               tally,
			ResolvedAt:          r.ResolvedAt,
		})
	}

	return g, nil
}

func splitCodes(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
