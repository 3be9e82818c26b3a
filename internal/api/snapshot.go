package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kiliankoe/partyquorum/internal/apierr"
	"github.com/kiliankoe/partyquorum/internal/store"
)

// handleGetGame is spec.md §4.8's polling contract: GET /games/{code} with
// v=<clientVersion>, If-None-Match for 304, touch=1 to heartbeat. The
// sweep (spec.md §4.7) runs on every hit before the snapshot is assembled,
// so a poll is also what drives deadline/disconnect housekeeping forward.
func (s *Server) handleGetGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}

	playerID := c.Query("playerId")
	touch := c.Query("touch") == "1"
	if err := s.Sweeper.Sweep(c.Request.Context(), game.ID, playerID, touch); err != nil {
		writeError(c, apierr.Unavailable("sweep failed", err))
		return
	}

	game, err := s.Store.GetGameByID(c.Request.Context(), game.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	etag := fmt.Sprintf(`"%d"`, game.Version)

	if v := c.Query("v"); v != "" {
		if clientVersion, err := strconv.ParseInt(v, 10, 64); err == nil && clientVersion == game.Version {
			if inm := c.GetHeader("If-None-Match"); inm == "" || inm == etag {
				c.Header("ETag", etag)
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	snapshot, err := s.buildSnapshot(c, game)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("ETag", etag)
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) buildSnapshot(c *gin.Context, game *store.Game) (*GameSnapshot, error) {
	ctx := c.Request.Context()

	players, err := s.Store.ListPlayers(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.Store.ListRounds(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	var latestRoundID string
	if len(rounds) > 0 {
		latestRoundID = rounds[len(rounds)-1].ID
	}

	// votableIndex maps a prompt id to its position among the latest
	// round's votable prompts, used only to decide hiding for that round.
	var votableIndex map[string]int
	if game.Status == store.StatusVoting && latestRoundID != "" {
		votable, err := s.Quorum.VotablePrompts(ctx, latestRoundID)
		if err != nil {
			return nil, err
		}
		votableIndex = make(map[string]int, len(votable))
		for i, p := range votable {
			votableIndex[p.ID] = i
		}
	}

	roundViews := make([]RoundView, 0, len(rounds))
	for _, round := range rounds {
		prompts, err := s.Store.ListPromptsForRound(ctx, round.ID)
		if err != nil {
			return nil, err
		}
		promptViews := make([]PromptView, 0, len(prompts))
		for _, p := range prompts {
			hidden := false
			if round.ID == latestRoundID {
				if idx, isVotable := votableIndex[p.ID]; isVotable && idx > game.VotingPromptIndex {
					hidden = true
				}
			}
			assignees, err := s.Store.ListAssignmentsForPrompt(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			pv := PromptView{ID: p.ID, Text: p.Text, Order: p.Order, Assignees: assignees, Hidden: hidden}
			if !hidden {
				responses, err := s.Store.ListResponsesForPrompt(ctx, p.ID)
				if err != nil {
					return nil, err
				}
				for _, r := range responses {
					reactions, err := s.Store.ListReactionsForResponse(ctx, r.ID)
					if err != nil {
						return nil, err
					}
					reactionViews := make([]ReactionView, 0, len(reactions))
					for _, rx := range reactions {
						reactionViews = append(reactionViews, ReactionView{PlayerID: rx.PlayerID, Emoji: rx.Emoji})
					}
					pv.Responses = append(pv.Responses, ResponseView{
						ID: r.ID, PlayerID: r.PlayerID, Text: r.Text,
						PointsEarned: r.PointsEarned, FailReason: r.FailReason,
						Reactions: reactionViews,
					})
				}
				votes, err := s.Store.ListVotesForPrompt(ctx, p.ID)
				if err != nil {
					return nil, err
				}
				for _, v := range votes {
					pv.Votes = append(pv.Votes, VoteView{VoterID: v.VoterID, ResponseID: v.ResponseID, FailReason: v.FailReason})
				}
			}
			promptViews = append(promptViews, pv)
		}
		roundViews = append(roundViews, RoundView{ID: round.ID, RoundNumber: round.RoundNumber, Prompts: promptViews})
	}

	playerViews := make([]PlayerView, 0, len(players))
	for _, p := range players {
		playerViews = append(playerViews, PlayerView{
			ID: p.ID, Name: p.Name, Type: p.Type, ModelID: p.ModelID,
			Score: p.Score, HumorRating: p.HumorRating, WinStreak: p.WinStreak,
			IdleRounds: p.IdleRounds, ParticipationStatus: p.ParticipationStatus,
		})
	}

	var deadline *int64
	if game.PhaseDeadline != nil {
		ms := game.PhaseDeadline.UnixMilli()
		deadline = &ms
	}

	return &GameSnapshot{
		ID: game.ID, RoomCode: game.RoomCode, Status: game.Status,
		CurrentRound: game.CurrentRound, TotalRounds: game.TotalRounds,
		HostPlayerID: game.HostPlayerID, PhaseDeadline: deadline,
		TimersDisabled: game.TimersDisabled, VotingPromptIndex: game.VotingPromptIndex,
		VotingRevealing: game.VotingRevealing, Version: game.Version,
		InputTokens: game.InputTokens, OutputTokens: game.OutputTokens,
		CostMicros: game.CostMicros, NextGameCode: game.NextGameCode,
		Players: playerViews, Rounds: roundViews,
	}, nil
}
