// Package sweeper is the per-request idempotent housekeeping pass spec.md
// §4.7 describes: refresh lastSeen, disconnect idle players, promote a new
// host if the old one goes stale, enforce phase deadlines, and re-check
// quorum immediately after a disconnect so the game never stalls on an
// absent player. It has no background timer — spec.md §9 is explicit that
// tying the sweep to the polling endpoint is intentional, so a game with
// zero active pollers simply stays put.
//
// No teacher precedent exists for disconnect/deadline handling at all —
// the teacher never times anyone out — so this package is grounded
// directly on spec.md §4.7's five numbered steps.
package sweeper

import (
	"context"
	"time"

	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
)

type Sweeper struct {
	Store   store.Store
	Quorum  *quorum.Oracle
	Machine *phase.Machine
	Config  phase.Config
}

func New(s store.Store, q *quorum.Oracle, m *phase.Machine, cfg phase.Config) *Sweeper {
	return &Sweeper{Store: s, Quorum: q, Machine: m, Config: cfg}
}

// Sweep runs one idempotent housekeeping pass for gameID. requestingPlayerID
// is "" for anonymous/spectator polls. touch requests the lastSeen refresh
// (spec.md §4.7 step 1); callers should pass it at most once per heartbeat
// window per player, though a repeat call is harmless.
func (sw *Sweeper) Sweep(ctx context.Context, gameID, requestingPlayerID string, touch bool) error {
	now := time.Now().UTC()

	if touch && requestingPlayerID != "" {
		if err := sw.Store.TouchPlayerLastSeen(ctx, requestingPlayerID, now); err != nil {
			return err
		}
	}

	players, err := sw.Store.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}

	disconnectedAny, err := sw.disconnectIdlePlayers(ctx, players, now)
	if err != nil {
		return err
	}

	if err := sw.promoteHostIfStale(ctx, gameID, players, now); err != nil {
		return err
	}

	if _, err := sw.Machine.HandleDeadline(ctx, gameID); err != nil {
		return err
	}

	if disconnectedAny {
		if err := sw.recheckQuorum(ctx, gameID); err != nil {
			return err
		}
	}
	return nil
}

func (sw *Sweeper) disconnectIdlePlayers(ctx context.Context, players []*store.Player, now time.Time) (bool, error) {
	any := false
	for _, p := range players {
		if p.ParticipationStatus != store.ParticipationActive {
			continue
		}
		if now.Sub(p.LastSeen) <= sw.Config.InactivityThreshold {
			continue
		}
		if err := sw.Store.SetPlayerParticipation(ctx, p.ID, store.ParticipationDisconnected); err != nil {
			return any, err
		}
		any = true
	}
	return any, nil
}

func (sw *Sweeper) promoteHostIfStale(ctx context.Context, gameID string, players []*store.Player, now time.Time) error {
	game, err := sw.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return err
	}
	var host *store.Player
	for _, p := range players {
		if p.ID == game.HostPlayerID {
			host = p
			break
		}
	}
	if host == nil || now.Sub(host.LastSeen) <= sw.Config.HostStaleThreshold {
		return nil
	}

	var candidate *store.Player
	for _, p := range players {
		if p.ID == host.ID || p.Type != store.PlayerHuman || p.ParticipationStatus != store.ParticipationActive {
			continue
		}
		if candidate == nil || p.LastSeen.After(candidate.LastSeen) {
			candidate = p
		}
	}
	if candidate == nil {
		return nil
	}
	return sw.Store.PromoteHost(ctx, gameID, candidate.ID)
}

// recheckQuorum implements spec.md §4.7 step 5: a disconnect can satisfy a
// quorum that a departed player was blocking, so immediately re-attempt the
// one transition the current phase is waiting on.
func (sw *Sweeper) recheckQuorum(ctx context.Context, gameID string) error {
	game, err := sw.Store.GetGameByID(ctx, gameID)
	if err != nil {
		return err
	}
	switch game.Status {
	case store.StatusWriting:
		complete, err := sw.Quorum.WritingComplete(ctx, gameID)
		if err != nil || !complete {
			return err
		}
		_, err = sw.Machine.TryCloseWriting(ctx, gameID)
		return err
	case store.StatusVoting:
		if game.VotingRevealing {
			return nil
		}
		complete, err := sw.Quorum.CurrentPromptVotingComplete(ctx, gameID)
		if err != nil || !complete {
			return err
		}
		_, err = sw.Machine.TryRevealCurrentPrompt(ctx, gameID)
		return err
	default:
		return nil
	}
}
