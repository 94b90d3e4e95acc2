package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeOptionIssue() Issue {
	return Issue{
		ID:    "reserve",
		Title: "Reserve currency",
		Options: []Option{
			{ID: "opt-c", Letter: "C", Text: "Gold", Favors: []string{"FRA"}},
			{ID: "opt-a", Letter: "A", Text: "Dollar", Favors: []string{"USA"}, Opposes: []string{"GBR"}},
			{ID: "opt-b", Letter: "B", Text: "Bancor", Favors: []string{"GBR"}, Opposes: []string{"USA"}},
		},
	}
}

func TestTallyVotes(t *testing.T) {
	issue := threeOptionIssue()
	now := time.Now()

	t.Run("counts approvals only", func(t *testing.T) {
		votes := []*Vote{
			NewVote("p1", "opt-a", true, now),
			NewVote("p2", "opt-a", false, now),
			NewVote("p3", "opt-b", true, now),
		}
		tally := TallyVotes(issue.Options, votes)
		assert.Equal(t, Tally{"opt-a": 1, "opt-b": 1, "opt-c": 0}, tally)
	})

	t.Run("ignores unknown options", func(t *testing.T) {
		votes := []*Vote{NewVote("p1", "missing", true, now)}
		tally := TallyVotes(issue.Options, votes)
		assert.Len(t, tally, 3)
		assert.NotContains(t, tally, "missing")
	})
}

func TestPickWinner(t *testing.T) {
	issue := threeOptionIssue()

	t.Run("tie goes to earlier letter", func(t *testing.T) {
		winner, ok := PickWinner(issue, Tally{"opt-a": 2, "opt-b": 2, "opt-c": 1})
		require.True(t, ok)
		assert.Equal(t, "A", winner.Letter)
	})

	t.Run("highest count wins", func(t *testing.T) {
		winner, ok := PickWinner(issue, Tally{"opt-a": 0, "opt-b": 1, "opt-c": 3})
		require.True(t, ok)
		assert.Equal(t, "opt-c", winner.ID)
	})

	t.Run("all zero resolves to first letter", func(t *testing.T) {
		winner, ok := PickWinner(issue, Tally{})
		require.True(t, ok)
		assert.Equal(t, "opt-a", winner.ID)
	})

	t.Run("no options", func(t *testing.T) {
		_, ok := PickWinner(Issue{ID: "empty"}, Tally{})
		assert.False(t, ok)
	})
}

func TestScoreDelta(t *testing.T) {
	winner := Option{ID: "x", Favors: []string{"X", "W"}, Opposes: []string{"Y", "W"}}

	assert.Equal(t, 10, ScoreDelta(winner, "X"))
	assert.Equal(t, -5, ScoreDelta(winner, "Y"))
	assert.Equal(t, 0, ScoreDelta(winner, "Z"))
	assert.Equal(t, 5, ScoreDelta(winner, "W"))
}

func TestUpsertVote(t *testing.T) {
	gi := NewGameIssue(1, "reserve")
	now := time.Now()

	gi.UpsertVote("p1", "opt-a", true, now)
	gi.UpsertVote("p1", "opt-a", false, now.Add(time.Second))
	gi.UpsertVote("p1", "opt-b", true, now)

	require.Len(t, gi.Votes, 2)
	assert.False(t, gi.Votes[0].Approve)
	assert.Equal(t, now.Add(time.Second), gi.Votes[0].VotedAt)
	assert.Equal(t, map[string]bool{"p1": true}, gi.Voters())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusLobby, StatusActive, true},
		{StatusActive, StatusComplete, true},
		{StatusActive, StatusLobby, true},
		{StatusComplete, StatusLobby, true},
		{StatusLobby, StatusComplete, false},
		{StatusLobby, StatusLobby, false},
		{StatusActive, StatusActive, false},
		{StatusComplete, StatusActive, false},
		{StatusComplete, StatusComplete, false},
		{Status("adjourned"), StatusLobby, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
