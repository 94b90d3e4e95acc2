package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brettonwoods/internal/catalog"
	"brettonwoods/internal/domain"
	"brettonwoods/internal/store/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*domain.GameEvent
}

func (n *recordingNotifier) Notify(event *domain.GameEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]domain.EventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

func (n *recordingNotifier) last() *domain.GameEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return nil
	}
	return n.events[len(n.events)-1]
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]domain.Country{
			{Code: "X", Name: "Xland"},
			{Code: "Y", Name: "Yland"},
			{Code: "Z", Name: "Zland"},
			{Code: "V", Name: "Vland"},
			{Code: "W", Name: "Wland"},
		},
		[]domain.Issue{
			{
				ID:    "first",
				Title: "First issue",
				Options: []domain.Option{
					{ID: "first-a", Letter: "A", Favors: []string{"X"}, Opposes: []string{"Y"}},
					{ID: "first-b", Letter: "B", Favors: []string{"Y"}},
					{ID: "first-c", Letter: "C", Favors: []string{"Z"}},
				},
			},
			{
				ID:    "second",
				Title: "Second issue",
				Options: []domain.Option{
					{ID: "second-a", Letter: "A", Favors: []string{"Z"}},
					{ID: "second-b", Letter: "B", Opposes: []string{"Z"}},
				},
			},
		},
	)
	require.NoError(t, err)
	return c
}

type fixture struct {
	engine   *Engine
	notifier *recordingNotifier
	ctx      context.Context
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()

	st, err := memory.New("", nil)
	require.NoError(t, err)

	if len(codes) == 0 {
		codes = []string{"GAME22"}
	}
	var mu sync.Mutex
	next := 0
	generator := func(int) string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[next%len(codes)]
		next++
		return code
	}

	ids := 0
	notifier := &recordingNotifier{}
	engine := NewEngine(Dependencies{
		Store:         st,
		Catalog:       testCatalog(t),
		Notifier:      notifier,
		Clock:         func() time.Time { return time.Date(1944, time.July, 1, 9, 0, 0, 0, time.UTC) },
		CodeGenerator: generator,
		NewID: func() string {
			ids++
			return fmt.Sprintf("player-%d", ids)
		},
	})

	return &fixture{engine: engine, notifier: notifier, ctx: context.Background()}
}

// seat creates a game hosted by the first user and seats users as countries
func (f *fixture) seat(t *testing.T, seats map[string]string, order ...string) *domain.Game {
	t.Helper()
	game, err := f.engine.CreateGame(f.ctx, order[0])
	require.NoError(t, err)
	for _, user := range order {
		_, err := f.engine.SelectCountry(f.ctx, game.Code, user, seats[user], "")
		require.NoError(t, err)
	}
	return game
}

func (f *fixture) start(t *testing.T, seats map[string]string, order ...string) *domain.Game {
	t.Helper()
	game := f.seat(t, seats, order...)
	for _, user := range order {
		_, err := f.engine.SetReady(f.ctx, game.Code, user)
		require.NoError(t, err)
	}
	game, err := f.engine.StartGame(f.ctx, game.Code, order[0])
	require.NoError(t, err)
	return game
}

func TestCreateGame(t *testing.T) {
	t.Run("requires a host", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.CreateGame(f.ctx, "")
		assert.ErrorIs(t, err, domain.ErrUserRequired)
	})

	t.Run("retries code collisions", func(t *testing.T) {
		f := newFixture(t, "AAAAAA", "AAAAAA", "BBBBBB")
		first, err := f.engine.CreateGame(f.ctx, "h1")
		require.NoError(t, err)
		second, err := f.engine.CreateGame(f.ctx, "h2")
		require.NoError(t, err)

		assert.Equal(t, "AAAAAA", first.Code)
		assert.Equal(t, "BBBBBB", second.Code)
		assert.Equal(t, domain.StatusLobby, second.Status)
		assert.Zero(t, second.CurrentRound)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		f := newFixture(t, "AAAAAA")
		_, err := f.engine.CreateGame(f.ctx, "h1")
		require.NoError(t, err)

		_, err = f.engine.CreateGame(f.ctx, "h2")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestSelectCountryConflict(t *testing.T) {
	f := newFixture(t)
	game := f.seat(t, map[string]string{"u1": "X"}, "u1")

	_, err := f.engine.SelectCountry(f.ctx, game.Code, "u2", "X", "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.engine.SelectCountry(f.ctx, game.Code, "u2", "NOPE", "")
	assert.ErrorIs(t, err, domain.ErrCountryNotFound)

	_, err = f.engine.SelectCountry(f.ctx, "MISSING", "u2", "Y", "")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	p, err := f.engine.SelectCountry(f.ctx, game.Code, "u1", "X", "Delegate")
	require.NoError(t, err)
	assert.Equal(t, "Delegate", p.DisplayName)

	lobby, err := f.engine.Lobby(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Len(t, lobby.Players, 1)
	assert.Len(t, lobby.AvailableCountries, 4)
}

func TestStartWithUnreadyPlayer(t *testing.T) {
	f := newFixture(t)
	seats := map[string]string{"u1": "X", "u2": "Y"}
	game := f.seat(t, seats, "u1", "u2")
	_, err := f.engine.SetReady(f.ctx, game.Code, "u1")
	require.NoError(t, err)

	_, err = f.engine.StartGame(f.ctx, game.Code, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := f.engine.Game(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLobby, stored.Status)
	assert.Zero(t, stored.CurrentRound)

	_, err = f.engine.SetReady(f.ctx, game.Code, "u2")
	require.NoError(t, err)
	_, err = f.engine.StartGame(f.ctx, game.Code, "u2")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestVoteUpsert(t *testing.T) {
	f := newFixture(t)
	game := f.start(t, map[string]string{"u1": "X", "u2": "Y"}, "u1", "u2")

	_, err := f.engine.SubmitVote(f.ctx, game.Code, "u1", "first-a", true)
	require.NoError(t, err)
	_, err = f.engine.SubmitVote(f.ctx, game.Code, "u1", "first-a", false)
	require.NoError(t, err)

	state, err := f.engine.State(f.ctx, game.Code)
	require.NoError(t, err)
	require.Len(t, state.Votes, 1)
	assert.False(t, state.Votes[0].Approve)
	assert.Equal(t, 1, state.VotedCount)

	_, err = f.engine.SubmitVote(f.ctx, game.Code, "u1", "second-a", true)
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)

	_, err = f.engine.SubmitVote(f.ctx, game.Code, "stranger", "first-a", true)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestNextRoundPrecondition(t *testing.T) {
	f := newFixture(t)
	game := f.start(t, map[string]string{"u1": "X", "u2": "Y"}, "u1", "u2")

	_, err := f.engine.SubmitVote(f.ctx, game.Code, "u1", "first-a", true)
	require.NoError(t, err)

	_, err = f.engine.NextRound(f.ctx, game.Code, "u1")
	assert.ErrorIs(t, err, domain.ErrNotAllVoted)

	stored, err := f.engine.Game(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentRound)
	assert.Empty(t, stored.History)
	assert.Zero(t, stored.Players[0].TotalScore)

	_, err = f.engine.NextRound(f.ctx, game.Code, "outsider")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTieBreakAndScoring(t *testing.T) {
	f := newFixture(t)
	seats := map[string]string{"u1": "X", "u2": "Y", "u3": "Z", "u4": "V", "u5": "W"}
	game := f.start(t, seats, "u1", "u2", "u3", "u4", "u5")

	votes := map[string]string{
		"u1": "first-a",
		"u2": "first-a",
		"u3": "first-b",
		"u4": "first-b",
		"u5": "first-c",
	}
	for user, option := range votes {
		_, err := f.engine.SubmitVote(f.ctx, game.Code, user, option, true)
		require.NoError(t, err)
	}

	result, err := f.engine.NextRound(f.ctx, game.Code, "u3")
	require.NoError(t, err)
	assert.Equal(t, "A", result.WinningOptionLetter)
	assert.Equal(t, domain.Tally{"first-a": 2, "first-b": 2, "first-c": 1}, result.Tally)

	stored, err := f.engine.Game(f.ctx, game.Code)
	require.NoError(t, err)
	scores := make(map[string]int)
	for _, p := range stored.Players {
		scores[p.CountryCode] = p.TotalScore
		assert.Zero(t, p.Phase2Score)
	}
	assert.Equal(t, 10, scores["X"])
	assert.Equal(t, -5, scores["Y"])
	assert.Equal(t, 0, scores["Z"])
	assert.Equal(t, 2, stored.CurrentRound)
	assert.Equal(t, domain.EventRoundAdvanced, f.notifier.last().Type)
}

func TestRoundsAreMonotoneToCompletion(t *testing.T) {
	f := newFixture(t)
	game := f.start(t, map[string]string{"u1": "X", "u2": "Z"}, "u1", "u2")

	rounds := []int{game.CurrentRound}
	for _, option := range []string{"first-c", "second-b"} {
		for _, user := range []string{"u1", "u2"} {
			_, err := f.engine.SubmitVote(f.ctx, game.Code, user, option, true)
			require.NoError(t, err)
		}
		_, err := f.engine.NextRound(f.ctx, game.Code, "u1")
		require.NoError(t, err)

		stored, err := f.engine.Game(f.ctx, game.Code)
		require.NoError(t, err)
		rounds = append(rounds, stored.CurrentRound)
	}

	assert.Equal(t, []int{1, 2, 2}, rounds)

	results, err := f.engine.Results(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, results.Game.Status)
	require.Len(t, results.Rounds, 2)
	assert.Equal(t, 1, results.Rounds[0].Round)

	// Z: +10 in round 1, -5 in round 2
	var z domain.StandingView
	for _, s := range results.Standings {
		if s.Country.Code == "Z" {
			z = s
		}
	}
	assert.Equal(t, 5, z.TotalScore)
	assert.Equal(t, 1, z.RoundsFavored)
	assert.Equal(t, 1, z.RoundsOpposed)
	assert.Equal(t, 2, z.ApprovedWinners)

	last := f.notifier.last()
	assert.Equal(t, domain.EventGameCompleted, last.Type)
	require.NotNil(t, last.Snapshot.Results)

	_, err = f.engine.SubmitVote(f.ctx, game.Code, "u1", "second-a", true)
	assert.ErrorIs(t, err, domain.ErrGameNotActive)
}

func TestResetGame(t *testing.T) {
	f := newFixture(t)
	seats := map[string]string{"u1": "X", "u2": "Y"}
	game := f.start(t, seats, "u1", "u2")
	for _, option := range []string{"first-a", "second-a"} {
		for _, user := range []string{"u1", "u2"} {
			_, err := f.engine.SubmitVote(f.ctx, game.Code, user, option, true)
			require.NoError(t, err)
		}
		_, err := f.engine.NextRound(f.ctx, game.Code, "u2")
		require.NoError(t, err)
	}

	completed, err := f.engine.Game(f.ctx, game.Code)
	require.NoError(t, err)
	require.Equal(t, domain.StatusComplete, completed.Status)

	_, err = f.engine.ResetGame(f.ctx, game.Code, "u2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	reset, err := f.engine.ResetGame(f.ctx, game.Code, "u1")
	require.NoError(t, err)
	assert.Equal(t, game.Code, reset.Code)
	assert.Equal(t, domain.StatusLobby, reset.Status)
	assert.Zero(t, reset.CurrentRound)
	assert.Empty(t, reset.History)
	assert.Empty(t, reset.Issues)
	assert.Nil(t, reset.CompletedAt)
	require.Len(t, reset.Players, 2)
	for _, p := range reset.Players {
		assert.Zero(t, p.TotalScore)
		assert.False(t, p.Ready)
	}
	assert.Equal(t, domain.EventGameReset, f.notifier.last().Type)

	snap, err := f.engine.Snapshot(f.ctx, game.Code)
	require.NoError(t, err)
	assert.NotNil(t, snap.Lobby)
	assert.Nil(t, snap.State)

	// Same roster plays again from round 1 with no votes carried over
	for _, user := range []string{"u1", "u2"} {
		_, err := f.engine.SetReady(f.ctx, game.Code, user)
		require.NoError(t, err)
	}
	_, err = f.engine.StartGame(f.ctx, game.Code, "u1")
	require.NoError(t, err)

	state, err := f.engine.State(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Game.CurrentRound)
	assert.Empty(t, state.Votes)
	assert.Zero(t, state.VotedCount)
	assert.False(t, state.AllVoted)

	results, err := f.engine.Results(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Empty(t, results.Rounds)
}

func TestNextRoundDoesNotInterleaveWithVotes(t *testing.T) {
	f := newFixture(t)
	game := f.start(t, map[string]string{"u1": "X", "u2": "Y", "u3": "Z"}, "u1", "u2", "u3")

	for _, user := range []string{"u1", "u2"} {
		_, err := f.engine.SubmitVote(f.ctx, game.Code, user, "first-a", true)
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		advanced  atomic.Bool
		successes atomic.Int32
		lateVote  error
	)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !advanced.Load() {
				_, err := f.engine.NextRound(f.ctx, game.Code, "u2")
				if err == nil {
					successes.Add(1)
					advanced.Store(true)
					return
				}
				if !assert.ErrorIs(t, err, domain.ErrNotAllVoted) {
					return
				}
			}
		}()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		_, err := f.engine.SubmitVote(f.ctx, game.Code, "u3", "first-b", true)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		// Either counted in round 1 or rejected once round 2 is open
		_, lateVote = f.engine.SubmitVote(f.ctx, game.Code, "u1", "first-c", true)
	}()
	go func() {
		defer wg.Done()
		// Retries until round 2 accepts it
		for {
			_, err := f.engine.SubmitVote(f.ctx, game.Code, "u2", "second-a", true)
			if err == nil {
				return
			}
			if !assert.ErrorIs(t, err, domain.ErrOptionNotFound) {
				return
			}
		}
	}()

	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())

	stored, err := f.engine.Game(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentRound)
	assert.Equal(t, domain.StatusActive, stored.Status)
	require.Len(t, stored.History, 1)

	tally := stored.History[0].Tally
	assert.Equal(t, 2, tally["first-a"])
	assert.Equal(t, 1, tally["first-b"])
	if lateVote == nil {
		assert.Equal(t, 1, tally["first-c"])
		assert.Len(t, stored.Issues[0].Votes, 4)
	} else {
		assert.ErrorIs(t, lateVote, domain.ErrOptionNotFound)
		assert.Zero(t, tally["first-c"])
		assert.Len(t, stored.Issues[0].Votes, 3)
	}

	require.Len(t, stored.Issues[1].Votes, 1)
	assert.Equal(t, "second-a", stored.Issues[1].Votes[0].OptionID)

	state, err := f.engine.State(f.ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, state.VotedCount)
}

func TestLeaveGame(t *testing.T) {
	f := newFixture(t)
	game := f.seat(t, map[string]string{"u1": "X", "u2": "Y"}, "u1", "u2")

	require.NoError(t, f.engine.LeaveGame(f.ctx, game.Code, "u2"))
	assert.ErrorIs(t, f.engine.LeaveGame(f.ctx, game.Code, "u2"), domain.ErrPlayerNotFound)

	_, err := f.engine.SelectCountry(f.ctx, game.Code, "u3", "Y", "")
	require.NoError(t, err)
}

func TestNotificationsFollowCommits(t *testing.T) {
	f := newFixture(t)
	f.start(t, map[string]string{"u1": "X"}, "u1")

	assert.Equal(t, []domain.EventType{
		domain.EventGameCreated,
		domain.EventPlayerJoined,
		domain.EventPlayerReady,
		domain.EventGameStarted,
	}, f.notifier.types())

	last := f.notifier.last()
	assert.Equal(t, "u1", last.UserID)
	require.NotNil(t, last.Snapshot.State)
	require.NotNil(t, last.Snapshot.State.CurrentIssue)
	assert.Equal(t, "first", last.Snapshot.State.CurrentIssue.ID)
}

func TestCodeIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	game, err := f.engine.CreateGame(f.ctx, "u1")
	require.NoError(t, err)

	_, err = f.engine.SelectCountry(f.ctx, " game22 ", "u1", "x", "")
	require.NoError(t, err)

	lobby, err := f.engine.Lobby(f.ctx, "game22")
	require.NoError(t, err)
	assert.Equal(t, game.Code, lobby.Game.Code)
}

func TestConcurrentSelectCountry(t *testing.T) {
	f := newFixture(t)
	game, err := f.engine.CreateGame(f.ctx, "host")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.SelectCountry(f.ctx, game.Code, fmt.Sprintf("u%d", i), "X", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCountryTaken)
	}
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, f.engine.locks.size())
}

func TestPurgeStale(t *testing.T) {
	st, err := memory.New("", nil)
	require.NoError(t, err)

	clock := time.Date(1944, time.July, 1, 9, 0, 0, 0, time.UTC)
	codes := []string{"EMPTY2", "SEATED"}
	next := 0
	engine := NewEngine(Dependencies{
		Store:   st,
		Catalog: testCatalog(t),
		Clock:   func() time.Time { return clock },
		CodeGenerator: func(int) string {
			code := codes[next]
			next++
			return code
		},
	})
	ctx := context.Background()

	_, err = engine.CreateGame(ctx, "h1")
	require.NoError(t, err)
	seated, err := engine.CreateGame(ctx, "h2")
	require.NoError(t, err)
	_, err = engine.SelectCountry(ctx, seated.Code, "h2", "X", "")
	require.NoError(t, err)

	purged, err := engine.PurgeStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	clock = clock.Add(2 * time.Hour)
	purged, err = engine.PurgeStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = engine.Game(ctx, "EMPTY2")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Games: 1, Lobby: 1, Players: 1}, stats)
}

func TestGenerateGameCode(t *testing.T) {
	code := GenerateGameCode(DefaultGameCodeLength)
	require.Len(t, code, DefaultGameCodeLength)
	for _, c := range code {
		assert.Contains(t, GameCodeChars, string(c))
	}

	code, err := generateCode(bytes.NewReader([]byte{0, 1, 32, 33}), 4)
	require.NoError(t, err)
	assert.Equal(t, "ABAB", code)

	_, err = generateCode(iotest.ErrReader(errors.New("entropy exhausted")), 4)
	assert.Error(t, err)

	_, err = generateCode(bytes.NewReader([]byte{1}), 4)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
