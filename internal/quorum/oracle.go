// Package quorum answers the three questions the phase machine gates
// transitions on (spec.md §4.4): who currently counts, has writing finished,
// and has voting finished on the currently-revealing prompt. It only reads
// through internal/store.Store — no writes, no transition logic of its own.
//
// Grounded on the teacher's SubmissionCount/HumanSubmissionCount/
// PlayerSubmissionStatus accessors in
// kiliankoe-gptdash/backend/internal/game/manager.go, generalized from a
// fixed player list to the active-contestant population spec.md §4.4
// defines (participationStatus shrinks the population on disconnect, so
// quorum never stalls on an absent player).
package quorum

import (
	"context"
	"fmt"

	"github.com/kiliankoe/partyquorum/internal/store"
)

// Oracle answers quorum queries for one Store.
type Oracle struct {
	Store store.Store
}

func New(s store.Store) *Oracle {
	return &Oracle{Store: s}
}

// ActiveContestantIDs returns players whose Type != PlayerSpectator and
// ParticipationStatus == ParticipationActive, in store order.
func (o *Oracle) ActiveContestantIDs(ctx context.Context, gameID string) ([]string, error) {
	players, err := o.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("quorum: list players: %w", err)
	}
	var ids []string
	for _, p := range players {
		if p.Type != store.PlayerSpectator && p.ParticipationStatus == store.ParticipationActive {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// WritingComplete reports whether, for the game's current round, every
// active contestant has a Response on every Prompt they are assigned.
func (o *Oracle) WritingComplete(ctx context.Context, gameID string) (bool, error) {
	active, err := o.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	if len(active) == 0 {
		return true, nil
	}
	activeSet := toSet(active)

	round, err := o.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("quorum: latest round: %w", err)
	}
	prompts, err := o.Store.ListPromptsForRound(ctx, round.ID)
	if err != nil {
		return false, fmt.Errorf("quorum: list prompts: %w", err)
	}

	for _, prompt := range prompts {
		assignees, err := o.Store.ListAssignmentsForPrompt(ctx, prompt.ID)
		if err != nil {
			return false, fmt.Errorf("quorum: assignments for prompt %s: %w", prompt.ID, err)
		}
		responded, err := respondedSet(ctx, o.Store, prompt.ID)
		if err != nil {
			return false, err
		}
		for _, playerID := range assignees {
			if !activeSet[playerID] {
				continue // disconnected/spectator assignees don't block writing
			}
			if !responded[playerID] {
				return false, nil
			}
		}
	}
	return true, nil
}

// VotablePrompts returns the round's prompts with at least two non-forfeit
// responses, in round order — spec.md's glossary definition of "votable
// prompt". `Game.VotingPromptIndex` indexes into exactly this list, not the
// round's full prompt list (a round can contain non-votable prompts, e.g. a
// sole-survivor or all-forfeit pairing, which never get a voting turn).
func (o *Oracle) VotablePrompts(ctx context.Context, roundID string) ([]*store.Prompt, error) {
	prompts, err := o.Store.ListPromptsForRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("quorum: list prompts: %w", err)
	}
	var out []*store.Prompt
	for _, p := range prompts {
		responses, err := o.Store.ListResponsesForPrompt(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("quorum: responses for prompt %s: %w", p.ID, err)
		}
		live := 0
		for _, r := range responses {
			if r.Text != store.ForfeitMarker {
				live++
			}
		}
		if live >= 2 {
			out = append(out, p)
		}
	}
	return out, nil
}

// CurrentPromptVotingComplete reports whether the votable prompt at
// Game.VotingPromptIndex has at least |active contestants| - |respondents of
// this prompt| recorded votes (cast, abstention, or error all count).
func (o *Oracle) CurrentPromptVotingComplete(ctx context.Context, gameID string) (bool, error) {
	game, err := o.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("quorum: get game: %w", err)
	}
	active, err := o.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}

	round, err := o.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("quorum: latest round: %w", err)
	}
	votable, err := o.VotablePrompts(ctx, round.ID)
	if err != nil {
		return false, err
	}
	if game.VotingPromptIndex < 0 || game.VotingPromptIndex >= len(votable) {
		return false, fmt.Errorf("quorum: voting prompt index %d out of range (%d votable prompts)", game.VotingPromptIndex, len(votable))
	}
	prompt := votable[game.VotingPromptIndex]

	respondents, err := respondedSet(ctx, o.Store, prompt.ID)
	if err != nil {
		return false, err
	}

	votes, err := o.Store.ListVotesForPrompt(ctx, prompt.ID)
	if err != nil {
		return false, fmt.Errorf("quorum: votes for prompt %s: %w", prompt.ID, err)
	}

	required := len(active) - len(respondents)
	if required < 0 {
		required = 0
	}
	return len(votes) >= required, nil
}

func respondedSet(ctx context.Context, s store.Store, promptID string) (map[string]bool, error) {
	responses, err := s.ListResponsesForPrompt(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("quorum: responses for prompt %s: %w", promptID, err)
	}
	set := make(map[string]bool, len(responses))
	for _, r := range responses {
		set[r.PlayerID] = true
	}
	return set, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
