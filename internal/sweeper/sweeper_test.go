package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
)

func newTestSweeper(t *testing.T, configure func(*phase.Config)) (*Sweeper, *memstore.Store, *phase.Machine) {
	t.Helper()
	s := memstore.New()
	q := quorum.New(s)
	cfg := phase.DefaultConfig()
	cfg.InactivityThreshold = 10 * time.Second
	cfg.HostStaleThreshold = 20 * time.Second
	if configure != nil {
		configure(&cfg)
	}
	m := phase.New(s, q, cfg, nil)
	sw := New(s, q, m, cfg)
	return sw, s, m
}

// TestDisconnectUnblocksVoting covers scenario S4: three active contestants
// move into VOTING with no votes cast yet, so the current prompt still needs
// one vote (3 active minus 2 respondents), and the third's lastSeen is stale.
// One sweep should both mark the third DISCONNECTED and, with the required
// count now 2 active minus 2 respondents = 0, close out the quorum.
func TestDisconnectUnblocksVoting(t *testing.T) {
	sw, s, m := newTestSweeper(t, nil)
	ctx := context.Background()

	g, host, err := s.CreateGame(ctx, store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(ctx, g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)
	p3, err := s.CreatePlayer(ctx, g.ID, "P3", store.PlayerHuman, "")
	require.NoError(t, err)

	claimed, err := m.Start(ctx, g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	round, err := s.GetLatestRound(ctx, g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(ctx, round.ID)
	require.NoError(t, err)

	for _, p := range prompts {
		assignees, err := s.ListAssignmentsForPrompt(ctx, p.ID)
		require.NoError(t, err)
		for _, a := range assignees {
			_, _, err := s.CreateResponse(ctx, p.ID, a, "joke from "+a, store.FailNone)
			require.NoError(t, err)
		}
	}

	closed, err := m.TryCloseWriting(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, closed)

	game, err := s.GetGameByID(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusVoting, game.Status)

	currentPrompt := prompts[game.VotingPromptIndex]
	responses, err := s.ListResponsesForPrompt(ctx, currentPrompt.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2) // two respondents; the one remaining contestant is the only eligible voter

	complete, err := sw.Quorum.CurrentPromptVotingComplete(ctx, g.ID)
	require.NoError(t, err)
	require.False(t, complete, "voting should still be waiting on one vote before the disconnect")

	now := time.Now()
	require.NoError(t, s.TouchPlayerLastSeen(ctx, host.ID, now))
	require.NoError(t, s.TouchPlayerLastSeen(ctx, p2.ID, now))
	require.NoError(t, s.TouchPlayerLastSeen(ctx, p3.ID, now.Add(-time.Minute)))

	require.NoError(t, sw.Sweep(ctx, g.ID, "", false))

	p3After, err := s.GetPlayerByID(ctx, p3.ID)
	require.NoError(t, err)
	require.Equal(t, store.ParticipationDisconnected, p3After.ParticipationStatus)

	afterSweep, err := s.GetGameByID(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, afterSweep.VotingRevealing, "reveal should fire once the disconnect shrinks the required vote count to zero")
}

func TestPromoteHostIfStale(t *testing.T) {
	sw, s, m := newTestSweeper(t, nil)
	ctx := context.Background()

	g, host, err := s.CreateGame(ctx, store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	p2, err := s.CreatePlayer(ctx, g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)
	_, err = m.Start(ctx, g.ID, host.ID)
	require.NoError(t, err)

	require.NoError(t, s.TouchPlayerLastSeen(ctx, host.ID, time.Now().Add(-time.Minute)))
	require.NoError(t, s.TouchPlayerLastSeen(ctx, p2.ID, time.Now()))

	require.NoError(t, sw.Sweep(ctx, g.ID, "", false))

	game, err := s.GetGameByID(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, p2.ID, game.HostPlayerID)
}

// TestSweepTriggersDeadlineTransition forces an already-expired writing
// deadline (negative WritingDuration) so HandleDeadline must forfeit the
// outstanding responses and close WRITING on the first sweep.
func TestSweepTriggersDeadlineTransition(t *testing.T) {
	sw, s, m := newTestSweeper(t, func(cfg *phase.Config) { cfg.WritingDuration = -time.Hour })
	ctx := context.Background()

	g, host, err := s.CreateGame(ctx, store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	_, err = s.CreatePlayer(ctx, g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)
	_, err = m.Start(ctx, g.ID, host.ID)
	require.NoError(t, err)

	require.NoError(t, sw.Sweep(ctx, g.ID, "", false))

	game, err := s.GetGameByID(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusVoting, game.Status)
}

func TestSweepTouchesRequestingPlayer(t *testing.T) {
	sw, s, m := newTestSweeper(t, nil)
	ctx := context.Background()

	g, host, err := s.CreateGame(ctx, store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	_, err = s.CreatePlayer(ctx, g.ID, "P2", store.PlayerHuman, "")
	require.NoError(t, err)
	_, err = m.Start(ctx, g.ID, host.ID)
	require.NoError(t, err)

	before, err := s.GetPlayerByID(ctx, host.ID)
	require.NoError(t, err)

	require.NoError(t, sw.Sweep(ctx, g.ID, host.ID, true))

	after, err := s.GetPlayerByID(ctx, host.ID)
	require.NoError(t, err)
	require.False(t, after.LastSeen.Before(before.LastSeen))
}
