package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleCleanupGames is GET /cron/cleanup-games: purge games older than 24h,
// gated by the cron secret. Grounded directly on
// store.Store.DeleteStaleGames; spec.md's component table treats cleanup
// as "specified only by contract" so the handler does nothing beyond the
// one store call.
func (s *Server) handleCleanupGames(c *gin.Context) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	n, err := s.Store.DeleteStaleGames(c.Request.Context(), cutoff)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cleanupResponse{Deleted: n})
}
