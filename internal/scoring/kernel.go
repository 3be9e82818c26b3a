// Package scoring is the pure scoring kernel described in spec.md §4.3. It
// performs no I/O: the phase machine's round-scoring commit (§4.5.2) and the
// client's "live standings" replay both call the same Score function over
// the same inputs and must get byte-identical results (spec.md §8,
// property 5).
//
// The pack retrieved for this spec carries no precedent for a scoring
// kernel; its shape is grounded on the teacher's computeScores() in
// kiliankoe-gptdash/backend/internal/game/manager.go (tally votes per
// submission, award points per author) generalized to weighted votes,
// forfeits, streaks, and humor rating as spec.md §4.3 and §9 describe.
package scoring

import "github.com/kiliankoe/partyquorum/internal/store"

const (
	basePoints       = 10
	forfeitPenalty   = -1
	unanimousBonus   = 3
	humorRatingFloor = 0.2
	humorRatingCeil  = 3.0
	humorRatingHit   = 1.6
	humorRatingMiss  = 0.6
	humorRatingStep  = 0.05
)

// PlayerState is the subset of Player that scoring reads and updates.
type PlayerState struct {
	Score       int
	HumorRating float64
	WinStreak   int
}

// ResponseInput is a prompt's response, stripped to what scoring needs.
type ResponseInput struct {
	ID       string
	AuthorID string
	Text     string
}

// VoteInput is a prompt's vote, stripped to what scoring needs. ResponseID
// == "" with FailReason == "" is an abstention; ResponseID == "" with a
// non-empty FailReason is an error vote; otherwise it is a cast vote.
type VoteInput struct {
	VoterID    string
	ResponseID string
	FailReason store.FailReason
}

// PromptInput is everything the kernel needs about one prompt.
type PromptInput struct {
	ID        string
	Responses []ResponseInput
	Votes     []VoteInput
	// EligibleVoters is the count of active contestants who did not author
	// a response to this prompt (spec.md §4.3). It gates the unanimous-cast
	// bonus: a "unanimous" result only means something once every eligible
	// voter actually cast one.
	EligibleVoters int
}

// PromptResult is the per-prompt scoring output.
type PromptResult struct {
	ResponsePoints   map[string]int     // responseID -> points
	AuthorPenalty    map[string]int     // authorID -> penalty (<= 0)
	VoterHumorRating map[string]float64 // voterID -> updated humor rating
	WinnerResponseID string             // "" if no winner (tie or all-forfeit)
}

// RoundResult aggregates every prompt of a round plus the round-level
// win-streak update.
type RoundResult struct {
	Prompts          map[string]PromptResult // promptID -> result
	PlayerScoreDelta map[string]int          // playerID -> Σ points + penalties this round
	PlayerHumorRating map[string]float64     // playerID -> final humor rating
	PlayerWinStreak  map[string]int          // playerID -> final win streak
}

func isForfeit(r ResponseInput) bool { return r.Text == store.ForfeitMarker }

func clampHumorRating(v float64) float64 {
	if v < humorRatingFloor {
		return humorRatingFloor
	}
	if v > humorRatingCeil {
		return humorRatingCeil
	}
	return v
}

// voteWeight pins spec.md §9's "Open Question": a monotone, bounded function
// of round number and the voter's own humor rating.
func voteWeight(round int, humorRating float64) float64 {
	return (1 + 0.15*float64(round-1)) * humorRating
}

// ScorePrompt is the per-prompt half of the kernel. It is deterministic:
// the same (round, prompt, state) always yields the same PromptResult.
func ScorePrompt(round int, p PromptInput, state map[string]PlayerState) PromptResult {
	out := PromptResult{
		ResponsePoints:   map[string]int{},
		AuthorPenalty:    map[string]int{},
		VoterHumorRating: map[string]float64{},
	}

	var liveResponses []ResponseInput
	for _, r := range p.Responses {
		out.ResponsePoints[r.ID] = 0
		if isForfeit(r) {
			out.AuthorPenalty[r.AuthorID] += forfeitPenalty
			continue
		}
		liveResponses = append(liveResponses, r)
	}

	// Exactly one real response survives the forfeits: auto-win, no vote
	// arithmetic needed (spec.md §8 property 6 / scenario S5).
	if len(liveResponses) == 1 {
		out.ResponsePoints[liveResponses[0].ID] = basePoints
		out.WinnerResponseID = liveResponses[0].ID
		applyHumorRatings(round, p, state, out, liveResponses[0].ID)
		return out
	}
	if len(liveResponses) == 0 {
		applyHumorRatings(round, p, state, out, "")
		return out
	}

	weighted := map[string]float64{}
	castCount := 0
	for _, v := range p.Votes {
		if v.ResponseID == "" {
			continue // abstention or error vote: no share
		}
		castCount++
		hr := 1.0
		if ps, ok := state[v.VoterID]; ok {
			hr = ps.HumorRating
		}
		weighted[v.ResponseID] += voteWeight(round, hr)
	}

	winner, tie := topResponse(liveResponses, weighted)
	if tie {
		applyHumorRatings(round, p, state, out, "")
		return out
	}

	pts := basePoints + int(weighted[winner]+0.5)
	unanimous := castCount >= 2 && (p.EligibleVoters == 0 || castCount == p.EligibleVoters)
	if unanimous {
		allSame := true
		for _, v := range p.Votes {
			if v.ResponseID != "" && v.ResponseID != winner {
				allSame = false
				break
			}
		}
		if allSame {
			pts += unanimousBonus
		}
	}
	out.ResponsePoints[winner] = pts
	out.WinnerResponseID = winner
	applyHumorRatings(round, p, state, out, winner)
	return out
}

// topResponse returns the response id with strictly the highest weighted
// vote total, or tie=true if the top is shared.
func topResponse(responses []ResponseInput, weighted map[string]float64) (id string, tie bool) {
	best := ""
	bestW := -1.0
	tied := false
	for _, r := range responses {
		w := weighted[r.ID]
		switch {
		case w > bestW:
			best, bestW, tied = r.ID, w, false
		case w == bestW:
			tied = true
		}
	}
	if best == "" {
		return "", true
	}
	return best, tied
}

func applyHumorRatings(round int, p PromptInput, state map[string]PlayerState, out PromptResult, winner string) {
	for _, v := range p.Votes {
		if v.ResponseID == "" {
			continue // abstentions and error votes don't move a rating
		}
		hr := 1.0
		if ps, ok := state[v.VoterID]; ok {
			hr = ps.HumorRating
		}
		target := humorRatingMiss
		if winner != "" && v.ResponseID == winner {
			target = humorRatingHit
		}
		hr = clampHumorRating(hr + (target-hr)*humorRatingStep)
		out.VoterHumorRating[v.VoterID] = hr
	}
	_ = round
}

// Score runs ScorePrompt over every supplied prompt and aggregates a
// round-level result, including the win-streak update. Callers pass a
// prefix of a round's prompts (e.g. only the revealed ones) to replay live
// standings, or the full set to commit final round scores — both produce
// the same per-prompt numbers, since ScorePrompt is pure.
func Score(round int, prompts []PromptInput, state map[string]PlayerState) RoundResult {
	out := RoundResult{
		Prompts:           map[string]PromptResult{},
		PlayerScoreDelta:  map[string]int{},
		PlayerHumorRating: map[string]float64{},
		PlayerWinStreak:   map[string]int{},
	}
	for id := range state {
		out.PlayerHumorRating[id] = state[id].HumorRating
		out.PlayerWinStreak[id] = state[id].WinStreak
	}

	for _, p := range prompts {
		pr := ScorePrompt(round, p, state)
		out.Prompts[p.ID] = pr
		for responseID, pts := range pr.ResponsePoints {
			authorID := authorOf(p.Responses, responseID)
			if authorID == "" {
				continue
			}
			out.PlayerScoreDelta[authorID] += pts
		}
		for authorID, penalty := range pr.AuthorPenalty {
			out.PlayerScoreDelta[authorID] += penalty
		}
		for voterID, hr := range pr.VoterHumorRating {
			out.PlayerHumorRating[voterID] = hr
		}
	}

	applyWinStreak(state, out)
	return out
}

func authorOf(responses []ResponseInput, responseID string) string {
	for _, r := range responses {
		if r.ID == responseID {
			return r.AuthorID
		}
	}
	return ""
}

func applyWinStreak(state map[string]PlayerState, out RoundResult) {
	top := ""
	topVal := 0
	first := true
	tie := false
	for id := range state {
		v := out.PlayerScoreDelta[id]
		if first || v > topVal {
			top, topVal, first, tie = id, v, false, false
		} else if v == topVal {
			tie = true
		}
	}
	for id, ps := range state {
		if !tie && id == top {
			out.PlayerWinStreak[id] = ps.WinStreak + 1
		} else {
			out.PlayerWinStreak[id] = 0
		}
	}
}
