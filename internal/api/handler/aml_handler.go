package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nitebet/casino-core/internal/api/middleware"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/service"
)

// AMLHandler serves the compliance surface: on-demand analysis, alert review,
// risk-profile reads, and regulatory report records. Admin role required on
// every route.
type AMLHandler struct {
	amlSvc *service.AMLService
}

// NewAMLHandler creates an AMLHandler.
func NewAMLHandler(amlSvc *service.AMLService) *AMLHandler {
	return &AMLHandler{amlSvc: amlSvc}
}

// pageParams reads limit/offset query values. Negative or unparsable values
// become 0 so they never reach the store; the repositories apply defaults.
func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// AnalyzeTransaction godoc
// POST /aml/analyze-transaction/:transaction_id [JWT admin]
func (h *AMLHandler) AnalyzeTransaction(c *gin.Context) {
	result, err := h.amlSvc.AnalyzeTransaction(c.Request.Context(),
		c.Param("transaction_id"), middleware.GetPlayerID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// CreateAlert godoc
// POST /aml/alerts [JWT admin]
func (h *AMLHandler) CreateAlert(c *gin.Context) {
	var req service.ManualAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	alert, err := h.amlSvc.CreateManualAlert(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, alert)
}

// ListAlerts godoc
// GET /aml/alerts?status=NEW&severity=HIGH&player_id=...&limit=50&offset=0 [JWT admin]
func (h *AMLHandler) ListAlerts(c *gin.Context) {
	limit, offset := pageParams(c)
	alerts, err := h.amlSvc.ListAlerts(c.Request.Context(), repository.AlertFilter{
		PlayerID: c.Query("player_id"),
		Status:   domain.AlertStatus(c.Query("status")),
		Severity: domain.AlertSeverity(c.Query("severity")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, alerts)
}

// GetAlert godoc
// GET /aml/alerts/:id [JWT admin]
func (h *AMLHandler) GetAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondDomainError(c, domain.ErrAlertNotFound)
		return
	}
	alert, err := h.amlSvc.GetAlert(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, alert)
}

// UpdateAlertStatus godoc
// PUT /aml/alerts/:id/status [JWT admin]
// Body: {"status":"INVESTIGATING","notes":"..."}
func (h *AMLHandler) UpdateAlertStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondDomainError(c, domain.ErrAlertNotFound)
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}

	alert, err := h.amlSvc.UpdateAlertStatus(c.Request.Context(), id,
		domain.AlertStatus(body.Status), middleware.GetPlayerID(c), body.Notes)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, alert)
}

// PlayerAlerts godoc
// GET /aml/player/:player_id/alerts [JWT admin]
func (h *AMLHandler) PlayerAlerts(c *gin.Context) {
	limit, offset := pageParams(c)
	alerts, err := h.amlSvc.ListAlerts(c.Request.Context(), repository.AlertFilter{
		PlayerID: c.Param("player_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, alerts)
}

// PlayerTransactions godoc
// GET /aml/player/:player_id/transactions [JWT admin]
func (h *AMLHandler) PlayerTransactions(c *gin.Context) {
	limit, offset := pageParams(c)
	txns, err := h.amlSvc.PlayerTransactions(c.Request.Context(), c.Param("player_id"), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, txns)
}

// RiskProfile godoc
// GET /aml/player/:player_id/risk-profile [JWT admin]
func (h *AMLHandler) RiskProfile(c *gin.Context) {
	profile, err := h.amlSvc.GetRiskProfile(c.Request.Context(), c.Param("player_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, profile)
}

// HighRiskPlayers godoc
// GET /aml/high-risk-players?limit=50 [JWT admin]
func (h *AMLHandler) HighRiskPlayers(c *gin.Context) {
	limit, _ := pageParams(c)
	profiles, err := h.amlSvc.HighRiskPlayers(c.Request.Context(), limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, profiles)
}

// CreateReport godoc
// POST /aml/report [JWT admin]
func (h *AMLHandler) CreateReport(c *gin.Context) {
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	report, err := h.amlSvc.CreateReport(c.Request.Context(), req, middleware.GetPlayerID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, report)
}

// GetReport godoc
// GET /aml/report/:report_id [JWT admin]
func (h *AMLHandler) GetReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("report_id"))
	if err != nil {
		respondDomainError(c, domain.ErrReportNotFound)
		return
	}
	report, err := h.amlSvc.GetReport(c.Request.Context(), reportID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// UpdateReportStatus godoc
// PUT /aml/report/:report_id/status [JWT admin]
// Body: {"status":"submitted"}
func (h *AMLHandler) UpdateReportStatus(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("report_id"))
	if err != nil {
		respondDomainError(c, domain.ErrReportNotFound)
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := h.amlSvc.UpdateReportStatus(c.Request.Context(), reportID, domain.ReportStatus(body.Status)); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"report_id": reportID, "status": body.Status})
}
