package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/cost"
	"github.com/kiliankoe/partyquorum/internal/model"
	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
)

type stubProvider struct{ text string }

func (s stubProvider) CompleteWithSystem(ctx context.Context, modelID, systemPrompt, prompt string) (string, model.Usage, error) {
	return s.text, model.Usage{InputTokens: 3, OutputTokens: 2}, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *memstore.Store, *phase.Machine) {
	t.Helper()
	s := memstore.New()
	q := quorum.New(s)
	cfg := phase.DefaultConfig()
	cfg.MinPlayers = 2

	mc := model.NewClient(map[string]model.Provider{"stub": stubProvider{text: "a funny joke"}})
	catalog := cost.Catalog{"ai-model": {ID: "ai-model", Provider: "stub"}}

	m := phase.New(s, q, cfg, nil)
	o := New(s, q, m, mc, catalog)
	m.Trigger = o
	return o, s, m
}

func TestGenerateResponsesForCurrentRoundFillsAIResponsesAndAdvancesPhase(t *testing.T) {
	o, s, m := newTestOrchestrator(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	ai, err := s.CreatePlayer(context.Background(), g.ID, "Bot", store.PlayerAI, "ai-model")
	require.NoError(t, err)

	claimed, err := m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)

	// Host answers its half so writingComplete only depends on the AI.
	for _, p := range prompts {
		assignees, err := s.ListAssignmentsForPrompt(context.Background(), p.ID)
		require.NoError(t, err)
		for _, a := range assignees {
			if a == host.ID {
				_, _, err := s.CreateResponse(context.Background(), p.ID, host.ID, "host joke", store.FailNone)
				require.NoError(t, err)
			}
		}
	}

	o.GenerateResponsesForCurrentRound(context.Background(), g.ID)

	for _, p := range prompts {
		responses, err := s.ListResponsesForPrompt(context.Background(), p.ID)
		require.NoError(t, err)
		found := false
		for _, r := range responses {
			if r.PlayerID == ai.ID {
				found = true
				require.Equal(t, "a funny joke", r.Text)
			}
		}
		require.True(t, found)
	}

	game, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusVoting, game.Status)

	final, err := s.GetGameByID(context.Background(), g.ID)
	require.NoError(t, err)
	require.Greater(t, final.InputTokens, int64(0))
}

func TestGenerateResponsesDedupesConcurrentCallsForSameGame(t *testing.T) {
	o, s, m := newTestOrchestrator(t)
	g, host, err := s.CreateGame(context.Background(), store.GameCreateParams{TotalRounds: 1, HostName: "H"})
	require.NoError(t, err)
	_, err = s.CreatePlayer(context.Background(), g.ID, "Bot", store.PlayerAI, "ai-model")
	require.NoError(t, err)
	_, err = m.Start(context.Background(), g.ID, host.ID)
	require.NoError(t, err)

	done := make(chan struct{}, 2)
	go func() { o.GenerateResponsesForCurrentRound(context.Background(), g.ID); done <- struct{}{} }()
	go func() { o.GenerateResponsesForCurrentRound(context.Background(), g.ID); done <- struct{}{} }()
	<-done
	<-done

	round, err := s.GetLatestRound(context.Background(), g.ID)
	require.NoError(t, err)
	prompts, err := s.ListPromptsForRound(context.Background(), round.ID)
	require.NoError(t, err)
	for _, p := range prompts {
		responses, err := s.ListResponsesForPrompt(context.Background(), p.ID)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, r := range responses {
			require.False(t, seen[r.PlayerID], "duplicate response from %s", r.PlayerID)
			seen[r.PlayerID] = true
		}
	}
}
