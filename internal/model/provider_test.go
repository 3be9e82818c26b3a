package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/store"
)

type stubProvider struct {
	text  string
	usage Usage
	err   error
}

func (s stubProvider) CompleteWithSystem(ctx context.Context, model, systemPrompt, prompt string) (string, Usage, error) {
	return s.text, s.usage, s.err
}

func TestGenerateJokeTrimsQuotesAndWhitespace(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{text: "  \"why did the chicken cross the road\"  ", usage: Usage{InputTokens: 10, OutputTokens: 5}}})
	res := c.GenerateJoke(context.Background(), "x", "model-1", "a chicken joke", nil)
	require.Equal(t, "why did the chicken cross the road", res.Text)
	require.Equal(t, store.FailNone, res.FailReason)
	require.EqualValues(t, 10, res.Usage.InputTokens)
}

func TestGenerateJokeEmptyAfterCleanReturnsForfeit(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{text: "   \"\"   "}})
	res := c.GenerateJoke(context.Background(), "x", "model-1", "prompt", nil)
	require.Equal(t, store.ForfeitMarker, res.Text)
	require.Equal(t, store.FailEmpty, res.FailReason)
}

func TestGenerateJokeProviderErrorReturnsForfeit(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{err: errors.New("boom")}})
	res := c.GenerateJoke(context.Background(), "x", "model-1", "prompt", nil)
	require.Equal(t, store.ForfeitMarker, res.Text)
	require.Equal(t, store.FailError, res.FailReason)
}

func TestGenerateJokeUnknownProviderReturnsForfeit(t *testing.T) {
	c := NewClient(map[string]Provider{})
	res := c.GenerateJoke(context.Background(), "missing", "model-1", "prompt", nil)
	require.Equal(t, store.ForfeitMarker, res.Text)
	require.Equal(t, store.FailError, res.FailReason)
}

func TestAIVoteZeroCandidates(t *testing.T) {
	c := NewClient(nil)
	res := c.AIVote(context.Background(), "x", "model-1", "game1", 1, "voter1", "prompt", nil)
	require.Equal(t, "", res.ChosenResponseID)
	require.Equal(t, store.FailNone, res.FailReason)
}

func TestAIVoteSingleCandidateWinsTrivially(t *testing.T) {
	c := NewClient(nil)
	res := c.AIVote(context.Background(), "x", "model-1", "game1", 1, "voter1", "prompt", []Candidate{{ResponseID: "r1"}})
	require.Equal(t, "r1", res.ChosenResponseID)
}

func TestAIVoteParsesValidLabel(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{text: "B"}})
	res := c.AIVote(context.Background(), "x", "model-1", "game1", 1, "voter1", "prompt", []Candidate{
		{ResponseID: "rA", Text: "a"}, {ResponseID: "rB", Text: "b"},
	})
	require.Equal(t, "rB", res.ChosenResponseID)
	require.Equal(t, store.FailNone, res.FailReason)
}

func TestAIVoteFallbackIsDeterministicAcrossReruns(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{err: errors.New("outage")}})
	candidates := []Candidate{{ResponseID: "rA"}, {ResponseID: "rB"}, {ResponseID: "rC"}}

	first := c.AIVote(context.Background(), "x", "model-1", "game1", 3, "voter1", "prompt", candidates)
	second := c.AIVote(context.Background(), "x", "model-1", "game1", 3, "voter1", "prompt", candidates)

	require.Equal(t, first.ChosenResponseID, second.ChosenResponseID)
	require.Equal(t, store.FailError, first.FailReason)
}

func TestAIVoteInvalidLabelFallsBackDeterministically(t *testing.T) {
	c := NewClient(map[string]Provider{"x": stubProvider{text: "not a label"}})
	candidates := []Candidate{{ResponseID: "rA"}, {ResponseID: "rB"}}

	first := c.AIVote(context.Background(), "x", "model-1", "game1", 1, "voter1", "prompt", candidates)
	second := c.AIVote(context.Background(), "x", "model-1", "game1", 1, "voter1", "prompt", candidates)

	require.Equal(t, first.ChosenResponseID, second.ChosenResponseID)
	require.Equal(t, store.FailInvalidVote, first.FailReason)
}
