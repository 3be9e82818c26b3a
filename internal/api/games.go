package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiliankoe/partyquorum/internal/apierr"
	"github.com/kiliankoe/partyquorum/internal/store"
)

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	if strings.TrimSpace(req.HostName) == "" {
		writeError(c, apierr.Validation("hostName is required"))
		return
	}
	if req.TotalRounds <= 0 {
		req.TotalRounds = 3
	}

	game, host, err := s.Store.CreateGame(c.Request.Context(), store.GameCreateParams{
		TotalRounds:    req.TotalRounds,
		TimersDisabled: req.TimersDisabled,
		HostName:       req.HostName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, createGameResponse{
		RoomCode:     game.RoomCode,
		HostPlayerID: host.ID,
		RejoinToken:  host.RejoinToken,
	})
}

func (s *Server) handleJoinGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req joinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(c, apierr.Validation("name is required"))
		return
	}
	typ := store.PlayerHuman
	switch strings.ToUpper(req.Type) {
	case "", string(store.PlayerHuman):
		typ = store.PlayerHuman
	case string(store.PlayerAI):
		typ = store.PlayerAI
	case string(store.PlayerSpectator):
		typ = store.PlayerSpectator
	default:
		writeError(c, apierr.Validation("unknown player type"))
		return
	}
	if typ == store.PlayerAI && req.ModelID == "" {
		writeError(c, apierr.Validation("modelId is required for AI players"))
		return
	}

	player, err := s.Store.CreatePlayer(c.Request.Context(), game.ID, req.Name, typ, req.ModelID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchVersion(c.Request.Context(), game.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, joinGameResponse{PlayerID: player.ID, RejoinToken: player.RejoinToken})
}

func (s *Server) handleRejoinGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req rejoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RejoinToken == "" {
		writeError(c, apierr.Validation("rejoinToken is required"))
		return
	}

	existing, err := s.Store.GetPlayerByRejoinToken(c.Request.Context(), req.RejoinToken)
	if err != nil || existing.GameID != game.ID {
		writeError(c, apierr.Unauthorized("invalid rejoin token"))
		return
	}

	player, newToken, err := s.Store.RotateRejoinToken(c.Request.Context(), req.RejoinToken)
	if err != nil {
		writeError(c, apierr.Unauthorized("invalid rejoin token"))
		return
	}
	now := time.Now().UTC()
	if err := s.Store.SetPlayerParticipation(c.Request.Context(), player.ID, store.ParticipationActive); err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchPlayerLastSeen(c.Request.Context(), player.ID, now); err != nil {
		writeError(c, err)
		return
	}
	if err := s.Store.TouchVersion(c.Request.Context(), game.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rejoinGameResponse{PlayerID: player.ID, RejoinToken: newToken})
}

func (s *Server) handleStartGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req hostActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	claimed, err := s.Machine.Start(c.Request.Context(), game.ID, req.HostPlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimedResponse{Claimed: claimed})
}

func (s *Server) handleNextGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req hostActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	claimed, err := s.Machine.Next(c.Request.Context(), game.ID, req.HostPlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimedResponse{Claimed: claimed})
}

func (s *Server) handleEndGame(c *gin.Context) {
	game, ok := s.gameByCode(c)
	if !ok {
		return
	}
	var req hostActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("malformed request body"))
		return
	}
	claimed, err := s.Machine.End(c.Request.Context(), game.ID, req.HostPlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimedResponse{Claimed: claimed})
}
