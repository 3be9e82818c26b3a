package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func TestScoreIsIdempotent(t *testing.T) {
	prompts := []PromptInput{
		{
			ID: "p1",
			Responses: []ResponseInput{
				{ID: "rA", AuthorID: "A", Text: "joke A"},
				{ID: "rB", AuthorID: "B", Text: "joke B"},
			},
			Votes: []VoteInput{
				{VoterID: "C", ResponseID: "rA"},
				{VoterID: "D", ResponseID: "rB"},
			},
			EligibleVoters: 2,
		},
	}
	state := map[string]PlayerState{
		"A": {HumorRating: 1.0},
		"B": {HumorRating: 1.0},
		"C": {HumorRating: 1.0},
		"D": {HumorRating: 1.0},
	}

	first := Score(2, prompts, state)
	second := Score(2, prompts, state)
	require.Equal(t, first, second)
}

func TestScoreForfeitSoleSurvivorAutoWins(t *testing.T) {
	prompts := []PromptInput{
		{
			ID: "p1",
			Responses: []ResponseInput{
				{ID: "rH", AuthorID: "H", Text: "a real joke"},
				{ID: "rA", AuthorID: "A", Text: store.ForfeitMarker},
			},
			Votes:          nil,
			EligibleVoters: 0,
		},
	}
	state := map[string]PlayerState{
		"H": {HumorRating: 1.0, WinStreak: 2},
		"A": {HumorRating: 1.0, WinStreak: 0},
	}

	result := Score(1, prompts, state)

	require.Equal(t, basePoints, result.Prompts["p1"].ResponsePoints["rH"])
	require.Equal(t, "rH", result.Prompts["p1"].WinnerResponseID)
	require.Equal(t, forfeitPenalty, result.Prompts["p1"].AuthorPenalty["A"])

	require.Equal(t, basePoints, result.PlayerScoreDelta["H"])
	require.Equal(t, forfeitPenalty, result.PlayerScoreDelta["A"])

	require.Equal(t, 3, result.PlayerWinStreak["H"])
	require.Equal(t, 0, result.PlayerWinStreak["A"])
}

func TestScoreAbstentionVsErrorVoteDoNotShiftHumorRating(t *testing.T) {
	prompts := []PromptInput{
		{
			ID: "p1",
			Responses: []ResponseInput{
				{ID: "rA", AuthorID: "A", Text: "joke A"},
				{ID: "rB", AuthorID: "B", Text: "joke B"},
			},
			Votes: []VoteInput{
				{VoterID: "abstainer", ResponseID: "", FailReason: store.FailNone},
				{VoterID: "errored", ResponseID: "", FailReason: store.FailError},
				{VoterID: "C", ResponseID: "rA"},
				{VoterID: "D", ResponseID: "rA"},
			},
			EligibleVoters: 4,
		},
	}
	state := map[string]PlayerState{
		"A":         {HumorRating: 1.0},
		"B":         {HumorRating: 1.0},
		"abstainer": {HumorRating: 1.0},
		"errored":   {HumorRating: 1.0},
		"C":         {HumorRating: 1.0},
		"D":         {HumorRating: 1.0},
	}

	result := Score(1, prompts, state)
	pr := result.Prompts["p1"]

	_, sawAbstainer := pr.VoterHumorRating["abstainer"]
	_, sawErrored := pr.VoterHumorRating["errored"]
	require.False(t, sawAbstainer)
	require.False(t, sawErrored)

	require.Equal(t, "rA", pr.WinnerResponseID)
	require.InDelta(t, 1.03, pr.VoterHumorRating["C"], 0.001)
}

func TestScoreUnanimousCastBonusRequiresEligibleMatch(t *testing.T) {
	prompts := []PromptInput{
		{
			ID: "p1",
			Responses: []ResponseInput{
				{ID: "rA", AuthorID: "A", Text: "joke A"},
				{ID: "rB", AuthorID: "B", Text: "joke B"},
			},
			Votes: []VoteInput{
				{VoterID: "C", ResponseID: "rA"},
				{VoterID: "D", ResponseID: "rA"},
			},
			EligibleVoters: 2,
		},
	}
	state := map[string]PlayerState{
		"A": {HumorRating: 1.0},
		"B": {HumorRating: 1.0},
		"C": {HumorRating: 1.0},
		"D": {HumorRating: 1.0},
	}

	result := Score(1, prompts, state)
	// base 10 + weighted votes (2 * voteWeight(1,1.0)=1.0 each => +2) + unanimous bonus 3
	require.Equal(t, basePoints+2+unanimousBonus, result.PlayerScoreDelta["A"])
}

func TestScoreTieProducesNoWinnerAndResetsStreaks(t *testing.T) {
	prompts := []PromptInput{
		{
			ID: "p1",
			Responses: []ResponseInput{
				{ID: "rA", AuthorID: "A", Text: "joke A"},
				{ID: "rB", AuthorID: "B", Text: "joke B"},
			},
			Votes: []VoteInput{
				{VoterID: "C", ResponseID: "rA"},
				{VoterID: "D", ResponseID: "rB"},
			},
			EligibleVoters: 2,
		},
	}
	state := map[string]PlayerState{
		"A": {HumorRating: 1.0, WinStreak: 3},
		"B": {HumorRating: 1.0, WinStreak: 1},
	}

	result := Score(1, prompts, state)
	require.Equal(t, "", result.Prompts["p1"].WinnerResponseID)
	require.Equal(t, 0, result.PlayerWinStreak["A"])
	require.Equal(t, 0, result.PlayerWinStreak["B"])
}
