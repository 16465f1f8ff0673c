package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/service"
)

// PlayerHandler serves player administration for the compliance team.
type PlayerHandler struct {
	authSvc *service.AuthService
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(authSvc *service.AuthService) *PlayerHandler {
	return &PlayerHandler{authSvc: authSvc}
}

// ErasePlayer godoc
// DELETE /admin/players/:player_id [JWT admin]
// Blanks the player's stored PII. The wallet and the transaction ledger are
// retained for regulatory record-keeping.
func (h *PlayerHandler) ErasePlayer(c *gin.Context) {
	playerID := c.Param("player_id")

	if err := h.authSvc.ErasePlayer(c.Request.Context(), playerID); err != nil {
		if domain.IsNotFound(err) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "player not found",
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "could not erase player",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"player_id": playerID, "anonymized": true},
	})
}
