package quorum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
)

func setupGame(t *testing.T, numPlayers int) (*Oracle, *memstore.Store, *store.Game, []*store.Player) {
	t.Helper()
	s := memstore.New()
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 3, HostName: "Host"})
	require.NoError(t, err)

	players := []*store.Player{host}
	for i := 1; i < numPlayers; i++ {
		p, err := s.CreatePlayer(context.Background(), g.ID, "P", store.PlayerHuman, "")
		require.NoError(t, err)
		players = append(players, p)
	}
	return New(s), s, g, players
}

func TestActiveContestantIDsExcludesSpectatorsAndDisconnected(t *testing.T) {
	o, s, g, players := setupGame(t, 3)
	spectator, err := s.CreatePlayer(context.Background(), g.ID, "Watcher", store.PlayerSpectator, "")
	require.NoError(t, err)
	require.NoError(t, s.SetPlayerParticipation(context.Background(), players[1].ID, store.ParticipationDisconnected))

	active, err := o.ActiveContestantIDs(context.Background(), g.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{players[0].ID, players[2].ID}, active)
	require.NotContains(t, active, spectator.ID)
}

func TestWritingCompleteTrueWhenAllAssigneesResponded(t *testing.T) {
	o, s, g, players := setupGame(t, 2)
	round, _, err := s.CreateRound(context.Background(), g.ID, 1)
	require.NoError(t, err)
	prompts, err := s.CreatePromptsWithAssignments(context.Background(), round.ID, []store.PromptDraft{
		{Text: "p1", Assignees: []string{players[0].ID, players[1].ID}},
	})
	require.NoError(t, err)

	complete, err := o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.False(t, complete)

	_, _, err = s.CreateResponse(context.Background(), prompts[0].ID, players[0].ID, "joke", store.FailNone)
	require.NoError(t, err)
	complete, err = o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.False(t, complete)

	_, _, err = s.CreateResponse(context.Background(), prompts[0].ID, players[1].ID, "joke2", store.FailNone)
	require.NoError(t, err)
	complete, err = o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestWritingCompleteShrinksOnDisconnect(t *testing.T) {
	o, s, g, players := setupGame(t, 2)
	round, _, err := s.CreateRound(context.Background(), g.ID, 1)
	require.NoError(t, err)
	_, err = s.CreatePromptsWithAssignments(context.Background(), round.ID, []store.PromptDraft{
		{Text: "p1", Assignees: []string{players[0].ID, players[1].ID}},
	})
	require.NoError(t, err)

	complete, err := o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.False(t, complete)

	require.NoError(t, s.SetPlayerParticipation(context.Background(), players[1].ID, store.ParticipationDisconnected))
	complete, err = o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.False(t, complete) // players[0] still hasn't responded

	require.NoError(t, s.SetPlayerParticipation(context.Background(), players[0].ID, store.ParticipationDisconnected))
	complete, err = o.WritingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.True(t, complete) // no active contestants left to block
}

func TestCurrentPromptVotingCompleteCountsAbstentions(t *testing.T) {
	o, s, g, players := setupGame(t, 3)
	round, _, err := s.CreateRound(context.Background(), g.ID, 1)
	require.NoError(t, err)
	prompts, err := s.CreatePromptsWithAssignments(context.Background(), round.ID, []store.PromptDraft{
		{Text: "p1", Assignees: []string{players[0].ID, players[1].ID}},
	})
	require.NoError(t, err)
	_, _, err = s.CreateResponse(context.Background(), prompts[0].ID, players[0].ID, "joke", store.FailNone)
	require.NoError(t, err)
	_, _, err = s.CreateResponse(context.Background(), prompts[0].ID, players[1].ID, "joke2", store.FailNone)
	require.NoError(t, err)

	// 3 active contestants, 2 respondents -> required votes = 1.
	complete, err := o.CurrentPromptVotingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.False(t, complete)

	_, _, err = s.CreateVote(context.Background(), prompts[0].ID, players[2].ID, "", store.FailNone)
	require.NoError(t, err)
	complete, err = o.CurrentPromptVotingComplete(context.Background(), g.ID)
	require.NoError(t, err)
	require.True(t, complete)
}
