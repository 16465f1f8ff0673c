package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/service"
)

// AuthHandler serves the operator bootstrap endpoint.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Bootstrap godoc
// POST /ua/v1/:casino_key/:api_token
// Body: {"uuid":"...","player":{"id":"...","country":"MT","currency":"EUR",...}}
func (h *AuthHandler) Bootstrap(c *gin.Context) {
	if err := h.authSvc.ValidateOperator(c.Param("casino_key"), c.Param("api_token")); err != nil {
		respondDomainError(c, err)
		return
	}

	var req service.BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	resp, err := h.authSvc.Bootstrap(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
