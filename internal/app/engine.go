package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brettonwoods/internal/domain"
	"brettonwoods/internal/store"
)

const (
	// DefaultGameCodeLength is the default length for game codes
	DefaultGameCodeLength = 6

	// DefaultStaleGameTimeout is how long an empty lobby lives before cleanup
	DefaultStaleGameTimeout = 2 * time.Hour

	// maxCodeAttempts bounds retries on game code collisions
	maxCodeAttempts = 10
)

// GameCodeChars are characters used for game codes (no ambiguous chars)
const GameCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Notifier receives every committed change. Implementations must not block.
type Notifier interface {
	Notify(event *domain.GameEvent)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(event *domain.GameEvent)

// Notify calls f(event)
func (f NotifierFunc) Notify(event *domain.GameEvent) { f(event) }

// Dependencies wires an Engine. Store and Catalog are required.
type Dependencies struct {
	Store         store.Store
	Catalog       domain.Catalog
	Notifier      Notifier
	Logger        *slog.Logger
	Clock         func() time.Time
	CodeLength    int
	CodeGenerator func(length int) string
	NewID         func() string
}

// Engine runs the conference: lobby formation, rounds, votes and scoring.
// Every mutation holds the game's lock from load to notification so
// subscribers see snapshots in commit order.
type Engine struct {
	store      store.Store
	catalog    domain.Catalog
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
	codeLength int
	newCode    func(length int) string
	newID      func() string
	locks      *gameLocks
}

// NewEngine creates a new engine
func NewEngine(deps Dependencies) *Engine {
	e := &Engine{
		store:      deps.Store,
		catalog:    deps.Catalog,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		now:        deps.Clock,
		codeLength: deps.CodeLength,
		newCode:    deps.CodeGenerator,
		newID:      deps.NewID,
		locks:      newGameLocks(),
	}

	if e.notifier == nil {
		e.notifier = NotifierFunc(func(*domain.GameEvent) {})
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.codeLength <= 0 {
		e.codeLength = DefaultGameCodeLength
	}
	if e.newCode == nil {
		e.newCode = GenerateGameCode
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}

	return e
}

// Catalog returns the catalog games are played against
func (e *Engine) Catalog() domain.Catalog {
	return e.catalog
}

// CreateGame creates a new game in the lobby hosted by hostID
func (e *Engine) CreateGame(ctx context.Context, hostID string) (*domain.Game, error) {
	if hostID == "" {
		return nil, domain.ErrUserRequired
	}

	for attempts := 0; attempts < maxCodeAttempts; attempts++ {
		game := domain.NewGame(e.newCode(e.codeLength), hostID, e.now())

		err := e.store.Create(ctx, game)
		if errors.Is(err, domain.ErrCodeTaken) {
			e.logger.Debug("game code collision", "gameCode", game.Code, "attempt", attempts+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.logger.Info("game created", "gameCode", game.Code, "hostID", hostID)
		e.publish(domain.EventGameCreated, game, hostID)
		return game, nil
	}

	e.logger.Error("failed to generate unique game code", "attempts", maxCodeAttempts)
	return nil, domain.ErrCodeTaken
}

// SelectCountry seats userID as countryCode. Re-selecting the same country is
// a no-op.
func (e *Engine) SelectCountry(ctx context.Context, code, userID, countryCode, displayName string) (*domain.Player, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	country, ok := e.catalog.Country(countryCode)
	if !ok {
		return nil, domain.ErrCountryNotFound
	}

	var player *domain.Player
	_, err := e.mutate(ctx, code, userID, always(domain.EventPlayerJoined), func(g *domain.Game) error {
		p, err := g.SelectCountry(e.newID(), userID, displayName, country, e.now())
		if err != nil {
			return err
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("country selected",
		"gameCode", domain.NormalizeCode(code),
		"userID", userID,
		"country", country.Code,
	)
	return player, nil
}

// SetReady marks userID's player as ready
func (e *Engine) SetReady(ctx context.Context, code, userID string) (*domain.Player, error) {
	var player *domain.Player
	_, err := e.mutate(ctx, code, userID, always(domain.EventPlayerReady), func(g *domain.Game) error {
		p, err := g.SetReady(userID, e.now())
		if err != nil {
			return err
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// LeaveGame frees userID's seat while the game is in the lobby
func (e *Engine) LeaveGame(ctx context.Context, code, userID string) error {
	_, err := e.mutate(ctx, code, userID, always(domain.EventPlayerLeft), func(g *domain.Game) error {
		return g.RemovePlayer(userID, e.now())
	})
	if err != nil {
		return err
	}

	e.logger.Info("player left", "gameCode", domain.NormalizeCode(code), "userID", userID)
	return nil
}

// StartGame opens round 1 with one round per catalog issue
func (e *Engine) StartGame(ctx context.Context, code, requesterID string) (*domain.Game, error) {
	issues := e.catalog.Issues()

	game, err := e.mutate(ctx, code, requesterID, always(domain.EventGameStarted), func(g *domain.Game) error {
		return g.Start(requesterID, issues, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("game started",
		"gameCode", game.Code,
		"players", len(game.Players),
		"rounds", game.TotalRounds(),
	)
	return game, nil
}

// SubmitVote records userID's approve/reject on an option of the current
// issue, replacing an earlier vote on the same option
func (e *Engine) SubmitVote(ctx context.Context, code, userID, optionID string, approve bool) (*domain.Vote, error) {
	var vote *domain.Vote
	_, err := e.mutate(ctx, code, userID, always(domain.EventVoteCast), func(g *domain.Game) error {
		issue, err := e.currentIssue(g)
		if err != nil {
			return err
		}
		v, err := g.CastVote(userID, optionID, approve, issue, e.now())
		if err != nil {
			return err
		}
		vote = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// NextRound resolves the current round once every player has voted
func (e *Engine) NextRound(ctx context.Context, code, requesterID string) (*domain.RoundResult, error) {
	var result *domain.RoundResult
	eventOf := func(g *domain.Game) domain.EventType {
		if g.Status == domain.StatusComplete {
			return domain.EventGameCompleted
		}
		return domain.EventRoundAdvanced
	}

	game, err := e.mutate(ctx, code, requesterID, eventOf, func(g *domain.Game) error {
		issue, err := e.currentIssue(g)
		if err != nil {
			return err
		}
		r, err := g.AdvanceRound(requesterID, issue, e.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("round resolved",
		"gameCode", game.Code,
		"round", result.Round,
		"winner", result.WinningOptionLetter,
		"status", game.Status,
	)
	return result, nil
}

// ResetGame returns the game to the lobby keeping its code and roster
func (e *Engine) ResetGame(ctx context.Context, code, requesterID string) (*domain.Game, error) {
	game, err := e.mutate(ctx, code, requesterID, always(domain.EventGameReset), func(g *domain.Game) error {
		return g.Reset(requesterID, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("game reset", "gameCode", game.Code, "requesterID", requesterID)
	return game, nil
}

// Game returns the stored game
func (e *Engine) Game(ctx context.Context, code string) (*domain.Game, error) {
	return e.store.Get(ctx, domain.NormalizeCode(code))
}

// Lobby projects the lobby
func (e *Engine) Lobby(ctx context.Context, code string) (*domain.LobbyView, error) {
	game, err := e.Game(ctx, code)
	if err != nil {
		return nil, err
	}
	return domain.BuildLobbyView(game, e.catalog), nil
}

// State projects the game in progress
func (e *Engine) State(ctx context.Context, code string) (*domain.StateView, error) {
	game, err := e.Game(ctx, code)
	if err != nil {
		return nil, err
	}
	return domain.BuildStateView(game, e.catalog), nil
}

// Results projects standings and round history
func (e *Engine) Results(ctx context.Context, code string) (*domain.ResultsView, error) {
	game, err := e.Game(ctx, code)
	if err != nil {
		return nil, err
	}
	return domain.BuildResultsView(game, e.catalog), nil
}

// Snapshot projects the game according to its status
func (e *Engine) Snapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	game, err := e.Game(ctx, code)
	if err != nil {
		return nil, err
	}
	return domain.BuildSnapshot(game, e.catalog), nil
}

// Stats summarizes stored games
type Stats struct {
	Games    int `json:"games"`
	Lobby    int `json:"lobby"`
	Active   int `json:"active"`
	Complete int `json:"complete"`
	Players  int `json:"players"`
}

// Stats counts games by status and seated players
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	games, err := e.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, g := range games {
		stats.Games++
		stats.Players += len(g.Players)
		switch g.Status {
		case domain.StatusLobby:
			stats.Lobby++
		case domain.StatusActive:
			stats.Active++
		case domain.StatusComplete:
			stats.Complete++
		}
	}
	return stats, nil
}

// PurgeStale deletes lobbies nobody joined that are older than maxAge
func (e *Engine) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	games, err := e.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	purged := 0
	for _, g := range games {
		if !isStale(g, now, maxAge) {
			continue
		}

		removed, err := e.deleteIfStale(ctx, g.Code, now, maxAge)
		if err != nil {
			return purged, err
		}
		if removed {
			purged++
			e.logger.Info("stale game cleaned up", "gameCode", g.Code)
		}
	}
	return purged, nil
}

// RunCleanup purges stale games every interval until ctx is done
func (e *Engine) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.PurgeStale(ctx, maxAge); err != nil && ctx.Err() == nil {
				e.logger.Error("stale game cleanup failed", "error", err)
			}
		}
	}
}

func (e *Engine) deleteIfStale(ctx context.Context, code string, now time.Time, maxAge time.Duration) (bool, error) {
	unlock := e.locks.lock(code)
	defer unlock()

	g, err := e.store.Get(ctx, code)
	if errors.Is(err, domain.ErrGameNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !isStale(g, now, maxAge) {
		return false, nil
	}

	if err := e.store.Delete(ctx, code); err != nil && !errors.Is(err, domain.ErrGameNotFound) {
		return false, err
	}
	return true, nil
}

func isStale(g *domain.Game, now time.Time, maxAge time.Duration) bool {
	return g.Status == domain.StatusLobby && len(g.Players) == 0 && now.Sub(g.UpdatedAt) > maxAge
}

// currentIssue resolves the catalog entry for the game's current round
func (e *Engine) currentIssue(g *domain.Game) (domain.Issue, error) {
	current, err := g.CurrentIssue()
	if err != nil {
		return domain.Issue{}, err
	}
	issue, ok := e.catalog.Issue(current.IssueID)
	if !ok {
		return domain.Issue{}, domain.ErrIssueNotFound
	}
	return issue, nil
}

func always(eventType domain.EventType) func(*domain.Game) domain.EventType {
	return func(*domain.Game) domain.EventType { return eventType }
}

// mutate applies fn under the game's lock and publishes the committed state
// before releasing it
func (e *Engine) mutate(
	ctx context.Context,
	code string,
	userID string,
	eventOf func(*domain.Game) domain.EventType,
	fn store.UpdateFunc,
) (*domain.Game, error) {
	code = domain.NormalizeCode(code)

	unlock := e.locks.lock(code)
	defer unlock()

	game, err := e.store.Update(ctx, code, fn)
	if err != nil {
		e.logger.Debug("mutation rejected", "gameCode", code, "userID", userID, "error", err)
		return nil, err
	}

	e.publish(eventOf(game), game, userID)
	return game, nil
}

func (e *Engine) publish(eventType domain.EventType, game *domain.Game, userID string) {
	snap := domain.BuildSnapshot(game, e.catalog)
	e.notifier.Notify(domain.NewEvent(eventType, game.Code, userID, snap, e.now()))
}

// GenerateGameCode returns a random code drawn from GameCodeChars. It panics
// if the system random source fails.
func GenerateGameCode(length int) string {
	code, err := generateCode(rand.Reader, length)
	if err != nil {
		panic(fmt.Sprintf("generate game code: %v", err))
	}
	return code
}

func generateCode(random io.Reader, length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(random, b); err != nil {
		return "", err
	}

	code := make([]byte, length)
	for i := range code {
		code[i] = GameCodeChars[int(b[i])%len(GameCodeChars)]
	}

	return string(code), nil
}
