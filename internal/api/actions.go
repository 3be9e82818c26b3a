package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kiliankoe/partyquorum/internal/apierr"
	"github.com/kiliankoe/partyquorum/internal/store"
)

func (s *Server) handleRespond(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	if game.Status != store.StatusWriting {
		writeError(c, apierr.PhaseMismatch("game is not accepting responses", string(game.Status)))
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	player, ok := s.playerInGame(c, game, req.PlayerID)
	if !ok {
		return
	}
	if player.Type == store.PlayerSpectator {
		writeError(c, apierr.Unauthorized("spectators cannot respond"))
		return
	}

	prompt, err := s.Store.GetPromptByID(c.Request.Context(), req.PromptID)
	if err != nil || prompt.GameID != game.ID {
		writeError(c, apierr.NotFound("unknown prompt"))
		return
	}
	assignees, err := s.Store.ListAssignmentsForPrompt(c.Request.Context(), prompt.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !contains(assignees, player.ID) {
		writeError(c, apierr.Validation("player is not assigned to this prompt"))
		return
	}

	text := strings.TrimSpace(req.Text)
	failReason := store.FailNone
	if text == "" {
		text = store.ForfeitMarker
		failReason = store.FailEmpty
	}

	_, created, err := s.Store.CreateResponse(c.Request.Context(), prompt.ID, player.ID, text, failReason)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchVersion(c.Request.Context(), game.ID); err != nil {
		writeError(c, err)
		return
	}

	// Submitting a response can be the one that satisfies writingComplete;
	// attempt the claim immediately instead of waiting for the next poll's
	// sweep (spec.md §2's data-flow: "after each human/AI response the
	// orchestrator calls the quorum oracle and attempts the atomic claim").
	if complete, err := s.Quorum.WritingComplete(c.Request.Context(), game.ID); err == nil && complete {
		_, _ = s.Machine.TryCloseWriting(c.Request.Context(), game.ID)
	}

	c.JSON(http.StatusOK, createdResponse{Created: created})
}

func (s *Server) handleVote(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	if game.Status != store.StatusVoting || game.VotingRevealing {
		writeError(c, apierr.PhaseMismatch("game is not accepting votes", string(game.Status)))
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	player, ok := s.playerInGame(c, game, req.PlayerID)
	if !ok {
		return
	}
	if player.Type == store.PlayerSpectator {
		writeError(c, apierr.Unauthorized("spectators cannot vote"))
		return
	}

	round, err := s.Store.GetLatestRound(c.Request.Context(), game.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	votable, err := s.Quorum.VotablePrompts(c.Request.Context(), round.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if game.VotingPromptIndex < 0 || game.VotingPromptIndex >= len(votable) {
		writeError(c, apierr.PhaseMismatch("no prompt is currently open for voting", string(game.Status)))
		return
	}
	current := votable[game.VotingPromptIndex]
	if req.PromptID != current.ID {
		writeError(c, apierr.Validation("promptId is not the currently open prompt"))
		return
	}

	assignees, err := s.Store.ListAssignmentsForPrompt(c.Request.Context(), current.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if contains(assignees, player.ID) {
		writeError(c, apierr.Validation("cannot vote on a prompt you authored"))
		return
	}

	failReason := store.FailNone
	if req.ResponseID != "" {
		responses, err := s.Store.ListResponsesForPrompt(c.Request.Context(), current.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		found := false
		for _, r := range responses {
			if r.ID == req.ResponseID {
				found = true
				break
			}
		}
		if !found {
			writeError(c, apierr.Validation("responseId does not belong to this prompt"))
			return
		}
	}

	_, created, err := s.Store.CreateVote(c.Request.Context(), current.ID, player.ID, req.ResponseID, failReason)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchVersion(c.Request.Context(), game.ID); err != nil {
		writeError(c, err)
		return
	}

	if complete, err := s.Quorum.CurrentPromptVotingComplete(c.Request.Context(), game.ID); err == nil && complete {
		_, _ = s.Machine.TryRevealCurrentPrompt(c.Request.Context(), game.ID)
	}

	c.JSON(http.StatusOK, createdResponse{Created: created})
}

func (s *Server) handleReact(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	if _, ok := s.playerInGame(c, game, req.PlayerID); !ok {
		return
	}
	if req.Emoji == "" {
		writeError(c, apierr.Validation("emoji is required"))
		return
	}

	response, err := s.Store.GetResponseByID(c.Request.Context(), req.ResponseID)
	if err != nil {
		writeError(c, apierr.NotFound("unknown response"))
		return
	}
	prompt, err := s.Store.GetPromptByID(c.Request.Context(), response.PromptID)
	if err != nil || prompt.GameID != game.ID {
		writeError(c, apierr.NotFound("unknown response"))
		return
	}

	added, err := s.Store.ToggleReaction(c.Request.Context(), response.ID, req.PlayerID, req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchVersion(c.Request.Context(), game.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
