package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/service"
)

// OverviewHandler serves the compliance team's landing view: the review queue
// by status, the newest open alerts, and the current high-risk feed.
type OverviewHandler struct {
	amlSvc *service.AMLService
}

// NewOverviewHandler creates an OverviewHandler.
func NewOverviewHandler(amlSvc *service.AMLService) *OverviewHandler {
	return &OverviewHandler{amlSvc: amlSvc}
}

// Overview godoc
// GET /admin/overview [JWT admin]
func (h *OverviewHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.amlSvc.AlertCountsByStatus(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "could not load alert counts",
		})
		return
	}
	newAlerts, err := h.amlSvc.ListAlerts(ctx, repository.AlertFilter{
		Status: domain.AlertNew,
		Limit:  10,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "could not load open alerts",
		})
		return
	}
	highRisk, err := h.amlSvc.HighRiskPlayers(ctx, 10)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "could not load high-risk players",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"alert_counts":      counts,
			"new_alerts":        newAlerts,
			"high_risk_players": highRisk,
		},
	})
}
