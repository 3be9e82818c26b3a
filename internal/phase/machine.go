// Package phase owns every Game state transition (spec.md §4.5). Every
// transition is expressed as an atomic conditional update on the Game row
// via store.Store.TryTransition, per spec.md §9's "atomic claims replace
// in-process locks": no per-game mutex is held across a transition, so the
// same Machine works unmodified against a single-process memstore or a
// multi-process pgstore.
//
// Grounded on the teacher's phase-transition switch in Advance()
// (kiliankoe-gptdash/backend/internal/game/manager.go), generalized from an
// in-process locked switch to the CAS-gated table spec.md §4.5 specifies.
package phase

import (
	"context"
	"time"

	"github.com/kiliankoe/partyquorum/internal/apierr"
	"github.com/kiliankoe/partyquorum/internal/promptbank"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/scoring"
	"github.com/kiliankoe/partyquorum/internal/store"
)

// AIOrchestrator is the narrow interface Machine fires in the background
// after a transition whose effects include "fire AI orchestrator" /
// "fire AI voter". The concrete orchestrator.Orchestrator satisfies this by
// having the matching method set; phase never imports orchestrator, which
// imports phase instead, to call back into the same claim methods defined
// here when its own work finishes.
type AIOrchestrator interface {
	GenerateResponsesForCurrentRound(ctx context.Context, gameID string)
	GenerateVotesForCurrentRound(ctx context.Context, gameID string)
}

// LeaderboardRecorder receives a game's final player standings once it
// reaches FINAL_RESULTS. Optional: a nil Leaderboard is a silent no-op, so
// tests that don't care about cross-game aggregation can omit it.
type LeaderboardRecorder interface {
	Record(ctx context.Context, players []*store.Player) error
}

// Machine is the phase engine for one Store.
type Machine struct {
	Store       store.Store
	Quorum      *quorum.Oracle
	Config      Config
	Trigger     AIOrchestrator
	Leaderboard LeaderboardRecorder
}

func New(s store.Store, q *quorum.Oracle, cfg Config, trigger AIOrchestrator) *Machine {
	return &Machine{Store: s, Quorum: q, Config: cfg, Trigger: trigger}
}

// recordFinal notifies Leaderboard once a transition has landed the game in
// FINAL_RESULTS. Best-effort: a recording failure never unwinds the
// already-committed phase transition.
func (m *Machine) recordFinal(ctx context.Context, gameID string) {
	if m.Leaderboard == nil {
		return
	}
	players, err := m.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return
	}
	_ = m.Leaderboard.Record(ctx, players)
}

func (m *Machine) fireResponses(gameID string) {
	if m.Trigger == nil {
		return
	}
	go m.Trigger.GenerateResponsesForCurrentRound(context.Background(), gameID)
}

func (m *Machine) fireVotes(gameID string) {
	if m.Trigger == nil {
		return
	}
	go m.Trigger.GenerateVotesForCurrentRound(context.Background(), gameID)
}

func (m *Machine) deadlineAt(d time.Duration, timersDisabled bool) *time.Time {
	if timersDisabled {
		return nil
	}
	t := time.Now().Add(d)
	return &t
}

// Start handles the host `start` action: LOBBY -> WRITING.
func (m *Machine) Start(ctx context.Context, gameID, requesterPlayerID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	if game.HostPlayerID != requesterPlayerID {
		return false, apierr.Unauthorized("only the host can start the game")
	}
	if game.Status != store.StatusLobby {
		return false, apierr.PhaseMismatch("game already started", string(game.Status))
	}

	active, err := m.Quorum.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	if len(active) < m.Config.MinPlayers {
		return false, apierr.Validation("not enough active players to start")
	}

	round, _, err := m.Store.CreateRound(ctx, gameID, 1)
	if err != nil {
		return false, err
	}
	if err := m.createRoundPrompts(ctx, gameID, round.ID, active); err != nil {
		return false, err
	}

	deadline := m.deadlineAt(m.Config.WritingDuration, game.TimersDisabled)
	claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusLobby}, func(g *store.Game) error {
		g.CurrentRound = 1
		g.Status = store.StatusWriting
		g.PhaseDeadline = deadline
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		m.fireResponses(gameID)
	}
	return claimed, nil
}

// createRoundPrompts draws N distinct prompts for N active contestants,
// excluding texts already used in this game, and assigns the round-robin
// pairing spec.md §4.5.1 specifies: prompt i goes to
// (players[i mod N], players[(i+1) mod N]).
func (m *Machine) createRoundPrompts(ctx context.Context, gameID, roundID string, active []string) error {
	n := len(active)
	used, err := m.Store.ListPromptTextsForGame(ctx, gameID)
	if err != nil {
		return err
	}
	texts := promptbank.Draw(n, used)

	drafts := make([]store.PromptDraft, n)
	for i := 0; i < n; i++ {
		a := active[i%n]
		b := active[(i+1)%n]
		drafts[i] = store.PromptDraft{Text: texts[i], Assignees: []string{a, b}}
	}
	_, err = m.Store.CreatePromptsWithAssignments(ctx, roundID, drafts)
	return err
}

// TryCloseWriting implements the WRITING -> VOTING transition, triggered by
// writingComplete or the writing deadline.
func (m *Machine) TryCloseWriting(ctx context.Context, gameID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	round, err := m.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, err
	}
	active, err := m.Quorum.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	if err := m.fillForfeits(ctx, round.ID, active); err != nil {
		return false, err
	}

	deadline := m.deadlineAt(m.Config.VotingDuration, game.TimersDisabled)
	claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusWriting}, func(g *store.Game) error {
		g.Status = store.StatusVoting
		g.VotingPromptIndex = 0
		g.VotingRevealing = false
		g.PhaseDeadline = deadline
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		m.fireVotes(gameID)
	}
	return claimed, nil
}

// fillForfeits writes a FORFEIT_MARKER response for every active contestant
// assigned a prompt they have not yet answered. Idempotent: CreateResponse's
// unique (promptId, playerId) constraint makes a repeat call a no-op.
func (m *Machine) fillForfeits(ctx context.Context, roundID string, active []string) error {
	activeSet := toSet(active)
	prompts, err := m.Store.ListPromptsForRound(ctx, roundID)
	if err != nil {
		return err
	}
	for _, p := range prompts {
		assignees, err := m.Store.ListAssignmentsForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		responses, err := m.Store.ListResponsesForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		responded := make(map[string]bool, len(responses))
		for _, r := range responses {
			responded[r.PlayerID] = true
		}
		for _, playerID := range assignees {
			if !activeSet[playerID] || responded[playerID] {
				continue
			}
			if _, _, err := m.Store.CreateResponse(ctx, p.ID, playerID, store.ForfeitMarker, store.FailEmpty); err != nil {
				return err
			}
		}
	}
	return nil
}

// TryRevealCurrentPrompt implements the VOTING(not revealing) ->
// VOTING(revealing) transition.
func (m *Machine) TryRevealCurrentPrompt(ctx context.Context, gameID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	prompt, err := m.currentPrompt(ctx, gameID, game)
	if err != nil {
		return false, err
	}
	active, err := m.Quorum.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	if err := m.fillAbstentions(ctx, prompt.ID, active); err != nil {
		return false, err
	}

	notRevealing := false
	deadline := m.deadlineAt(m.Config.VotingDuration, game.TimersDisabled)
	claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusVoting, VotingRevealing: &notRevealing}, func(g *store.Game) error {
		g.VotingRevealing = true
		g.PhaseDeadline = deadline
		return nil
	})
	return claimed, err
}

func (m *Machine) currentPrompt(ctx context.Context, gameID string, game *store.Game) (*store.Prompt, error) {
	round, err := m.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return nil, err
	}
	votable, err := m.Quorum.VotablePrompts(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if game.VotingPromptIndex < 0 || game.VotingPromptIndex >= len(votable) {
		return nil, apierr.NotFound("no prompt at current voting index")
	}
	return votable[game.VotingPromptIndex], nil
}

// fillAbstentions writes a null-response Vote for every active contestant
// who has not yet voted on promptID. Idempotent via (promptId, voterId).
func (m *Machine) fillAbstentions(ctx context.Context, promptID string, active []string) error {
	votes, err := m.Store.ListVotesForPrompt(ctx, promptID)
	if err != nil {
		return err
	}
	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		voted[v.VoterID] = true
	}
	for _, voterID := range active {
		if voted[voterID] {
			continue
		}
		if _, _, err := m.Store.CreateVote(ctx, promptID, voterID, "", store.FailNone); err != nil {
			return err
		}
	}
	return nil
}

// TryAdvanceOrFinishVoting implements the VOTING(revealing) transition,
// triggered by the voting deadline or the host's `next` action: move on to
// the next votable prompt, or
// if this was the last one, commit round scoring and advance to
// ROUND_RESULTS.
func (m *Machine) TryAdvanceOrFinishVoting(ctx context.Context, gameID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	round, err := m.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, err
	}
	votable, err := m.Quorum.VotablePrompts(ctx, round.ID)
	if err != nil {
		return false, err
	}

	revealing := true
	if game.VotingPromptIndex+1 < len(votable) {
		deadline := m.deadlineAt(m.Config.VotingDuration, game.TimersDisabled)
		claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusVoting, VotingRevealing: &revealing}, func(g *store.Game) error {
			g.VotingPromptIndex++
			g.VotingRevealing = false
			g.PhaseDeadline = deadline
			return nil
		})
		return claimed, err
	}

	claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusVoting, VotingRevealing: &revealing}, func(g *store.Game) error {
		g.Status = store.StatusRoundResults
		g.PhaseDeadline = nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		if err := m.commitRoundScoring(ctx, gameID, round); err != nil {
			return true, err
		}
	}
	return claimed, nil
}

// commitRoundScoring is §4.5.2: enumerate all prompts of the round (not
// just votable ones, so the forfeit sole-survivor case is scored too), run
// the pure kernel, and apply its deltas.
func (m *Machine) commitRoundScoring(ctx context.Context, gameID string, round *store.Round) error {
	players, err := m.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	state := make(map[string]scoring.PlayerState, len(players))
	byID := make(map[string]*store.Player, len(players))
	for _, p := range players {
		state[p.ID] = scoring.PlayerState{Score: p.Score, HumorRating: p.HumorRating, WinStreak: p.WinStreak}
		byID[p.ID] = p
	}
	activeSet := toSet(activeIDsFrom(players))

	prompts, err := m.Store.ListPromptsForRound(ctx, round.ID)
	if err != nil {
		return err
	}

	promptInputs := make([]scoring.PromptInput, 0, len(prompts))
	responsesByPrompt := map[string][]*store.Response{}
	for _, p := range prompts {
		responses, err := m.Store.ListResponsesForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		responsesByPrompt[p.ID] = responses
		votes, err := m.Store.ListVotesForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		assignees, err := m.Store.ListAssignmentsForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		authored := toSet(assignees)

		eligible := 0
		for id := range activeSet {
			if !authored[id] {
				eligible++
			}
		}

		var respInputs []scoring.ResponseInput
		for _, r := range responses {
			respInputs = append(respInputs, scoring.ResponseInput{ID: r.ID, AuthorID: r.PlayerID, Text: r.Text})
		}
		var voteInputs []scoring.VoteInput
		for _, v := range votes {
			voteInputs = append(voteInputs, scoring.VoteInput{VoterID: v.VoterID, ResponseID: v.ResponseID, FailReason: v.FailReason})
		}
		promptInputs = append(promptInputs, scoring.PromptInput{
			ID:             p.ID,
			Responses:      respInputs,
			Votes:          voteInputs,
			EligibleVoters: eligible,
		})
	}

	result := scoring.Score(round.RoundNumber, promptInputs, state)

	for promptID, pr := range result.Prompts {
		for _, r := range responsesByPrompt[promptID] {
			if pts, ok := pr.ResponsePoints[r.ID]; ok {
				if err := m.Store.SetResponsePoints(ctx, r.ID, pts); err != nil {
					return err
				}
			}
		}
	}

	deltas := make([]store.PlayerScoreDelta, 0, len(players))
	for _, p := range players {
		deltas = append(deltas, store.PlayerScoreDelta{
			PlayerID:       p.ID,
			ScoreDelta:     result.PlayerScoreDelta[p.ID],
			NewHumorRating: result.PlayerHumorRating[p.ID],
			NewWinStreak:   result.PlayerWinStreak[p.ID],
		})
	}
	return m.Store.ApplyRoundScoreDeltas(ctx, gameID, deltas)
}

// Next handles the host `next` action. From ROUND_RESULTS it advances to
// WRITING(round+1) or FINAL_RESULTS, same as before. From WRITING or VOTING
// it force-advances the current phase exactly the way its deadline would,
// which is the host's only way out of a stuck phase when TimersDisabled is
// set (no deadline ever fires) or a contestant simply never submits.
func (m *Machine) Next(ctx context.Context, gameID, requesterPlayerID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	if game.HostPlayerID != requesterPlayerID {
		return false, apierr.Unauthorized("only the host can advance the game")
	}

	switch game.Status {
	case store.StatusWriting:
		return m.TryCloseWriting(ctx, gameID)
	case store.StatusVoting:
		if !game.VotingRevealing {
			return m.TryRevealCurrentPrompt(ctx, gameID)
		}
		return m.TryAdvanceOrFinishVoting(ctx, gameID)
	case store.StatusRoundResults:
		// handled below
	default:
		return false, apierr.PhaseMismatch("game cannot be advanced from this phase", string(game.Status))
	}

	if game.CurrentRound >= game.TotalRounds {
		claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusRoundResults}, func(g *store.Game) error {
			g.Status = store.StatusFinalResults
			g.PhaseDeadline = nil
			return nil
		})
		if claimed {
			m.recordFinal(ctx, gameID)
		}
		return claimed, err
	}

	active, err := m.Quorum.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	nextRoundNumber := game.CurrentRound + 1
	round, _, err := m.Store.CreateRound(ctx, gameID, nextRoundNumber)
	if err != nil {
		return false, err
	}
	if err := m.createRoundPrompts(ctx, gameID, round.ID, active); err != nil {
		return false, err
	}

	deadline := m.deadlineAt(m.Config.WritingDuration, game.TimersDisabled)
	claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusRoundResults}, func(g *store.Game) error {
		g.CurrentRound = nextRoundNumber
		g.Status = store.StatusWriting
		g.VotingPromptIndex = 0
		g.VotingRevealing = false
		g.PhaseDeadline = deadline
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		m.fireResponses(gameID)
	}
	return claimed, nil
}

// HandleDeadline is the phase-side half of the sweeper (spec.md §4.7 step
// 4): if the game's phaseDeadline has passed, invoke whichever transition
// applies to the current phase. A no-op (false, nil) when there's nothing
// to do.
func (m *Machine) HandleDeadline(ctx context.Context, gameID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	if game.PhaseDeadline == nil || game.PhaseDeadline.After(time.Now()) {
		return false, nil
	}
	switch game.Status {
	case store.StatusWriting:
		return m.TryCloseWriting(ctx, gameID)
	case store.StatusVoting:
		if !game.VotingRevealing {
			return m.TryRevealCurrentPrompt(ctx, gameID)
		}
		return m.TryAdvanceOrFinishVoting(ctx, gameID)
	default:
		return false, nil
	}
}

// End handles the host `end` action: from any active phase, force forfeits
// and abstentions for anything outstanding in the current round, score it,
// and jump straight to FINAL_RESULTS.
func (m *Machine) End(ctx context.Context, gameID, requesterPlayerID string) (bool, error) {
	game, err := m.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	if game.HostPlayerID != requesterPlayerID {
		return false, apierr.Unauthorized("only the host can end the game")
	}

	switch game.Status {
	case store.StatusFinalResults:
		return false, apierr.PhaseMismatch("game already ended", string(game.Status))

	case store.StatusLobby:
		claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusLobby}, func(g *store.Game) error {
			g.Status = store.StatusFinalResults
			g.PhaseDeadline = nil
			return nil
		})
		if claimed {
			m.recordFinal(ctx, gameID)
		}
		return claimed, err

	case store.StatusRoundResults:
		claimed, _, err := m.Store.TryTransition(ctx, gameID, store.CASCheck{Status: store.StatusRoundResults}, func(g *store.Game) error {
			g.Status = store.StatusFinalResults
			g.PhaseDeadline = nil
			return nil
		})
		if claimed {
			m.recordFinal(ctx, gameID)
		}
		return claimed, err

	case store.StatusWriting:
		return m.forceScoreAndEnd(ctx, gameID, store.CASCheck{Status: store.StatusWriting}, true)

	case store.StatusVoting:
		return m.forceScoreAndEnd(ctx, gameID, store.CASCheck{Status: store.StatusVoting}, true)

	default:
		return false, apierr.PhaseMismatch("unknown phase", string(game.Status))
	}
}

func (m *Machine) forceScoreAndEnd(ctx context.Context, gameID string, check store.CASCheck, fillOutstanding bool) (bool, error) {
	round, err := m.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, err
	}
	active, err := m.Quorum.ActiveContestantIDs(ctx, gameID)
	if err != nil {
		return false, err
	}
	if fillOutstanding {
		if err := m.fillForfeits(ctx, round.ID, active); err != nil {
			return false, err
		}
		prompts, err := m.Store.ListPromptsForRound(ctx, round.ID)
		if err != nil {
			return false, err
		}
		for _, p := range prompts {
			if err := m.fillAbstentions(ctx, p.ID, active); err != nil {
				return false, err
			}
		}
	}

	claimed, _, err := m.Store.TryTransition(ctx, gameID, check, func(g *store.Game) error {
		g.Status = store.StatusFinalResults
		g.PhaseDeadline = nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		if err := m.commitRoundScoring(ctx, gameID, round); err != nil {
			return true, err
		}
		m.recordFinal(ctx, gameID)
	}
	return claimed, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func activeIDsFrom(players []*store.Player) []string {
	var ids []string
	for _, p := range players {
		if p.Type != store.PlayerSpectator && p.ParticipationStatus == store.ParticipationActive {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
