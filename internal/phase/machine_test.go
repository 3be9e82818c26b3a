package phase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
)

func newTestMachine(t *testing.T) (*Machine, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	q := quorum.New(s)
	cfg := DefaultConfig()
	cfg.InactivityThreshold = 0 // irrelevant here
	return New(s, q, cfg, nil), s
}

func TestStartRejectsNonHost(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	_, err = s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), g.ID, "not-"+host.ID)
	require.Error(t, err)
}

func TestStartRequiresMinPlayers(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)

	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.Error(t, err)
}

func TestStartCreatesRoundAndAssignsPrompts(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	claimed, err := m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusWriting, game.Status)
	require.Equal(t, 1, game.CurrentRound)

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	for _, p := range prompts {
		assignees, err := s.ListAssignmentsForPrompt(context.Background(), p.ID)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{host.ID, p2.ID}, assignees)
	}
}

func TestTryCloseWritingFillsForfeitsForMissingResponses(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)
	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)

	// Only answer one response out of the four assignment slots (2 prompts x 2 assignees).
	_, _, err = s.CreateResponse(context.Background(), prompts[0].ID, host.ID, "joke", store.FailNone)
	require.NoError(t, err)

	claimed, err := m.TryCloseWriting(context.Background(), g.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusVoting, game.Status)

	for _, p := range prompts {
		responses, err := s.ListResponsesForPrompt(context.Background(), p.ID)
		require.NoError(t, err)
		require.Len(t, responses, 2)
	}
	_ = p2
}

func TestFullRoundFlowReachesRoundResults(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	claimed, err := m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	for _, p := range prompts {
		_, _, err := s.CreateResponse(context.Background(), p.ID, host.ID, "joke by host", store.FailNone)
		require.NoError(t, err)
		_, _, err = s.CreateResponse(context.Background(), p.ID, p2.ID, "joke by p2", store.FailNone)
		require.NoError(t, err)
	}

	claimed, err = m.TryCloseWriting(context.Background(), g.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// Vote on each votable prompt and reveal/advance through both.
	for i := 0; i < len(prompts); i++ {
		game, err := s.GetGameByID(context.Background(), g.ID)
		require.NoError(t, err)
		require.Equal(t, store.StatusVoting, game.Status)
		current := prompts[game.VotingPromptIndex]

		responses, err := s.ListResponsesForPrompt(context.Background(), current.ID)
		require.NoError(t, err)
		// Each prompt's win goes to a different author, so both players
		// finish the round with points.
		winnerAuthor := host.ID
		if i%2 == 1 {
			winnerAuthor = p2.ID
		}
		var winner *store.Response
		for _, r := range responses {
			if r.PlayerID == winnerAuthor {
				winner = r
			}
		}
		require.NotNil(t, winner)

		_, _, err = s.CreateVote(context.Background(), current.ID, host.ID, winner.ID, store.FailNone)
		require.NoError(t, err)
		_, _, err = s.CreateVote(context.Background(), current.ID, p2.ID, winner.ID, store.FailNone)
		require.NoError(t, err)

		claimed, err = m.TryRevealCurrentPrompt(context.Background(), g.ID)
		require.NoError(t, err)
		require.True(t, claimed)

		claimed, err = m.TryAdvanceOrFinishVoting(context.Background(), g.ID)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusRoundResults, game.Status)

	players, err := s.ListPlayers(context.Background(), g.ID)
	require.NoError(t, err)
	for _, p := range players {
		require.Greater(t, p.Score, 0)
	}
}

// TestNextForceAdvancesStuckWritingPhase covers a host calling `next` while
// a round is still WRITING with an outstanding contestant and timers
// disabled — the only way out of that phase, since no deadline ever fires.
func TestNextForceAdvancesStuckWritingPhase(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H", TimersDisabled: true})
	require.NoError(t, err)
	_, err = s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusWriting, game.Status)
	require.Nil(t, game.PhaseDeadline)

	claimed, err := m.Next(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	game, err = s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusVoting, game.Status)
}

func TestNextAdvancesToFinalResultsWhenLastRound(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)
	// Both players answer every prompt so each one is votable and gets its
	// own reveal/advance step below.
	for _, p := range prompts {
		_, _, err := s.CreateResponse(context.Background(), p.ID, host.ID, "joke by host", store.FailNone)
		require.NoError(t, err)
		_, _, err = s.CreateResponse(context.Background(), p.ID, p2.ID, "joke by p2", store.FailNone)
		require.NoError(t, err)
	}
	_, err = m.TryCloseWriting(context.Background(), g.ID)
	require.NoError(t, err)

	for range prompts {
		claimed, err := m.TryRevealCurrentPrompt(context.Background(), g.ID)
		require.NoError(t, err)
		require.True(t, claimed)
		claimed, err = m.TryAdvanceOrFinishVoting(context.Background(), g.ID)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	claimed, err := m.Next(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFinalResults, game.Status)
}

func TestEndFromWritingForcesForfeitsAndFinalResults(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 3, HostName: "H"})
	require.NoError(t, err)
	_, err = s.CreatePlayer(context.Background(), g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)

	claimed, err := m.End(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFinalResults, game.Status)
}

func TestEndRejectsNonHost(t *testing.T) {
	m, s := newTestMachine(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)

	_, err = m.End(context.Background(), g.ID, "not-"+host.ID)
	require.Error(t, err)
}
