package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleLeaderboard is GET /leaderboard: aggregate across all
// FINAL_RESULTS games, no auth.
func (s *Server) handleLeaderboard(c *gin.Context) {
	n := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	entries, err := s.Leaderboard.Top(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, leaderboardResponse{Entries: entries})
}
