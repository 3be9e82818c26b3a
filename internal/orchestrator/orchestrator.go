// Package orchestrator drives background model calls for the current
// round (spec.md §4.6): generating AI jokes, then AI votes, fanning each
// wave out concurrently and feeding the results back through the phase
// machine's own claim methods so the same atomic-CAS discipline governs
// AI-driven transitions as host/player-driven ones.
//
// Grounded on the teacher's AI-call glue in datenspuren's websocket server
// (kiliankoe-gptdash/datenspuren/backend/internal/ws/socket.go — the
// goroutine that calls the provider and persists a submission) for the
// "spawn a task per AI call, persist on return" shape, and on
// storbeck-augustus's errgroup-based fan-out idiom
// (storbeck-augustus/pkg/... worker pools) for the concurrency primitive
// itself, since the teacher fans calls out with bare goroutines and no
// error aggregation.
package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kiliankoe/partyquorum/internal/cost"
	"github.com/kiliankoe/partyquorum/internal/model"
	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
)

// Orchestrator is the AI driver for one Store/Machine pair.
type Orchestrator struct {
	Store   store.Store
	Quorum  *quorum.Oracle
	Machine *phase.Machine
	Model   *model.Client
	Catalog cost.Catalog

	// inflight is spec.md §4.6's "per-process dedup": a gameID already
	// present is a task in flight; a new call for that game awaits it
	// instead of starting a duplicate. Best-effort only — store-side
	// uniqueness constraints are the real correctness guarantee (spec.md §9).
	inflightResponses taskMap
	inflightVotes     taskMap
}

func New(s store.Store, q *quorum.Oracle, m *phase.Machine, mc *model.Client, catalog cost.Catalog) *Orchestrator {
	return &Orchestrator{Store: s, Quorum: q, Machine: m, Model: mc, Catalog: catalog}
}

// taskMap is a gameID -> in-flight-task table. Callers that find an existing
// entry wait on it instead of starting a second run for the same game.
type taskMap struct {
	mu    sync.Mutex
	tasks map[string]chan struct{}
}

// join registers the caller as either the starter (owns=true, must close
// done when finished) or a waiter (owns=false, wait on done).
func (t *taskMap) join(gameID string) (done chan struct{}, owns bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tasks == nil {
		t.tasks = make(map[string]chan struct{})
	}
	if existing, ok := t.tasks[gameID]; ok {
		return existing, false
	}
	ch := make(chan struct{})
	t.tasks[gameID] = ch
	return ch, true
}

func (t *taskMap) finish(gameID string, done chan struct{}) {
	t.mu.Lock()
	delete(t.tasks, gameID)
	t.mu.Unlock()
	close(done)
}

// GenerateResponsesForCurrentRound implements spec.md §4.6's response wave:
// every AI contestant assigned a prompt in the current round who hasn't
// responded yet gets a generateJoke call, fanned out concurrently. After
// the wave, it checks writingComplete and attempts the WRITING->VOTING
// claim, firing the vote wave on success.
func (o *Orchestrator) GenerateResponsesForCurrentRound(ctx context.Context, gameID string) {
	done, owns := o.inflightResponses.join(gameID)
	if !owns {
		<-done
		return
	}
	defer o.inflightResponses.finish(gameID, done)

	if err := o.generateResponses(ctx, gameID); err != nil {
		return
	}
	complete, err := o.Quorum.WritingComplete(ctx, gameID)
	if err != nil || !complete {
		return
	}
	_, _ = o.Machine.TryCloseWriting(ctx, gameID)
}

func (o *Orchestrator) generateResponses(ctx context.Context, gameID string) error {
	players, err := o.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	playersByID := make(map[string]*store.Player, len(players))
	for _, p := range players {
		playersByID[p.ID] = p
	}

	round, err := o.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return err
	}
	prompts, err := o.Store.ListPromptsForRound(ctx, round.ID)
	if err != nil {
		return err
	}
	priorRounds, err := o.Store.ListRounds(ctx, gameID)
	if err != nil {
		return err
	}

	type job struct {
		prompt   *store.Prompt
		playerID string
	}
	var jobs []job
	for _, p := range prompts {
		assignees, err := o.Store.ListAssignmentsForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		responses, err := o.Store.ListResponsesForPrompt(ctx, p.ID)
		if err != nil {
			return err
		}
		responded := toSet(responseAuthors(responses))
		for _, playerID := range assignees {
			player := playersByID[playerID]
			if player == nil || player.Type != store.PlayerAI || responded[playerID] {
				continue
			}
			jobs = append(jobs, job{prompt: p, playerID: playerID})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			player := playersByID[j.playerID]
			info, _ := o.Catalog.Lookup(player.ModelID)
			history := o.buildHistory(gctx, j.playerID, priorRounds)

			result := o.Model.GenerateJoke(gctx, info.Provider, player.ModelID, j.prompt.Text, history)
			_, _, err := o.Store.CreateResponse(gctx, j.prompt.ID, j.playerID, result.Text, result.FailReason)
			if err != nil {
				return err
			}
			if result.Usage.InputTokens > 0 || result.Usage.OutputTokens > 0 {
				micros := o.Catalog.Micros(player.ModelID, result.Usage)
				usage := store.Usage{InputTokens: result.Usage.InputTokens, OutputTokens: result.Usage.OutputTokens}
				return o.Store.AddModelUsage(gctx, gameID, player.ModelID, usage, micros)
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) buildHistory(ctx context.Context, playerID string, priorRounds []*store.Round) []model.HistoryEntry {
	var history []model.HistoryEntry
	for _, r := range priorRounds {
		prompts, err := o.Store.ListPromptsForRound(ctx, r.ID)
		if err != nil {
			continue
		}
		for _, p := range prompts {
			responses, err := o.Store.ListResponsesForPrompt(ctx, p.ID)
			if err != nil {
				continue
			}
			var own *store.Response
			var winner *store.Response
			for _, resp := range responses {
				rc := resp
				if rc.PlayerID == playerID {
					own = rc
				}
				if winner == nil || rc.PointsEarned > winner.PointsEarned {
					winner = rc
				}
			}
			if own == nil {
				continue
			}
			entry := model.HistoryEntry{Round: r.RoundNumber, PromptText: p.Text, OwnText: own.Text}
			entry.Won = winner != nil && winner.PlayerID == playerID && winner.PointsEarned > 0
			if !entry.Won && winner != nil {
				entry.WinningTextIfLost = winner.Text
			}
			history = append(history, entry)
		}
	}
	return history
}

// GenerateVotesForCurrentRound implements spec.md §4.6's vote wave: every
// AI contestant who hasn't voted on a prompt they didn't author gets an
// aiVote call. Each vote on the currently-visible prompt bumps the Game
// version as soon as it is stored, and one more bump follows the wave if any
// did; votes on future prompts trigger no bump here. After the wave it
// attempts the VOTING(not revealing)->(revealing) claim.
func (o *Orchestrator) GenerateVotesForCurrentRound(ctx context.Context, gameID string) {
	done, owns := o.inflightVotes.join(gameID)
	if !owns {
		<-done
		return
	}
	defer o.inflightVotes.finish(gameID, done)

	anyOnCurrent, err := o.generateVotes(ctx, gameID)
	if err != nil {
		return
	}
	if anyOnCurrent {
		_ = o.Store.TouchVersion(ctx, gameID)
	}

	complete, err := o.Quorum.CurrentPromptVotingComplete(ctx, gameID)
	if err != nil || !complete {
		return
	}
	_, _ = o.Machine.TryRevealCurrentPrompt(ctx, gameID)
}

func (o *Orchestrator) generateVotes(ctx context.Context, gameID string) (anyOnCurrentPrompt bool, err error) {
	game, err := o.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return false, err
	}
	players, err := o.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return false, err
	}
	playersByID := make(map[string]*store.Player, len(players))
	for _, p := range players {
		playersByID[p.ID] = p
	}

	round, err := o.Store.GetLatestRound(ctx, gameID)
	if err != nil {
		return false, err
	}
	// VotablePrompts, not the round's raw prompt list: Game.VotingPromptIndex
	// indexes into the votable subset (spec.md §3 glossary), and a round can
	// contain non-votable prompts (sole-survivor/all-forfeit pairings) ahead
	// of the current one.
	votable, err := o.Quorum.VotablePrompts(ctx, round.ID)
	if err != nil {
		return false, err
	}

	type job struct {
		prompt    *store.Prompt
		voterID   string
		isCurrent bool
	}
	var jobs []job
	for i, p := range votable {
		responses, err := o.Store.ListResponsesForPrompt(ctx, p.ID)
		if err != nil {
			return false, err
		}
		authored := map[string]bool{}
		for _, r := range responses {
			authored[r.PlayerID] = true
		}
		votes, err := o.Store.ListVotesForPrompt(ctx, p.ID)
		if err != nil {
			return false, err
		}
		voted := toSet(voterIDs(votes))
		for _, player := range players {
			if player.Type != store.PlayerAI || authored[player.ID] || voted[player.ID] {
				continue
			}
			jobs = append(jobs, job{prompt: p, voterID: player.ID, isCurrent: i == game.VotingPromptIndex})
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			responses, err := o.Store.ListResponsesForPrompt(gctx, j.prompt.ID)
			if err != nil {
				return err
			}
			var candidates []model.Candidate
			for _, r := range responses {
				if r.Text != store.ForfeitMarker && r.PlayerID != j.voterID {
					candidates = append(candidates, model.Candidate{ResponseID: r.ID, Text: r.Text})
				}
			}
			player := playersByID[j.voterID]
			info, _ := o.Catalog.Lookup(player.ModelID)
			result := o.Model.AIVote(gctx, info.Provider, player.ModelID, gameID, round.RoundNumber, j.voterID, j.prompt.Text, candidates)

			_, _, err = o.Store.CreateVote(gctx, j.prompt.ID, j.voterID, result.ChosenResponseID, result.FailReason)
			if err != nil {
				return err
			}
			if j.isCurrent {
				mu.Lock()
				anyOnCurrentPrompt = true
				mu.Unlock()
				_ = o.Store.TouchVersion(gctx, gameID)
			}
			if result.Usage.InputTokens > 0 || result.Usage.OutputTokens > 0 {
				micros := o.Catalog.Micros(player.ModelID, result.Usage)
				usage := store.Usage{InputTokens: result.Usage.InputTokens, OutputTokens: result.Usage.OutputTokens}
				return o.Store.AddModelUsage(gctx, gameID, player.ModelID, usage, micros)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return anyOnCurrentPrompt, err
	}
	return anyOnCurrentPrompt, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func responseAuthors(responses []*store.Response) []string {
	out := make([]string, len(responses))
	for i, r := range responses {
		out[i] = r.PlayerID
	}
	return out
}

func voterIDs(votes []*store.Vote) []string {
	out := make([]string, len(votes))
	for i, v := range votes {
		out[i] = v.VoterID
	}
	return out
}
