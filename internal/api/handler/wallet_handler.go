package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/api/middleware"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/service"
	"github.com/shopspring/decimal"
)

// WalletHandler serves the provider wallet protocol: balance, check, and the
// three mutations. Committed deposits and withdrawals are handed to the AML
// pipeline in the background.
type WalletHandler struct {
	walletSvc *service.WalletService
	amlSvc    *service.AMLService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(walletSvc *service.WalletService, amlSvc *service.AMLService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, amlSvc: amlSvc}
}

// requirePlayer enforces that the body player id matches the authenticated
// credential; admin credentials may act on any player.
func requirePlayer(c *gin.Context, bodyPlayerID string) error {
	if domain.Role(middleware.GetRole(c)).IsAdmin() {
		return nil
	}
	if middleware.GetPlayerID(c) != bodyPlayerID {
		return domain.ErrPlayerIDMismatch
	}
	return nil
}

// Balance godoc
// POST /api/balance [JWT]
// Body: {"uuid":"...","player_id":"..."}
func (h *WalletHandler) Balance(c *gin.Context) {
	var body struct {
		UUID     string `json:"uuid"      binding:"required"`
		PlayerID string `json:"player_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := requirePlayer(c, body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}

	res, err := h.walletSvc.Balance(c.Request.Context(), body.PlayerID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{
		"balance":   res.Balance,
		"currency":  res.Currency,
		"uuid":      body.UUID,
		"player_id": body.PlayerID,
		"cache_hit": res.CacheHit,
	})
}

// Check godoc
// POST /api/check [JWT]
func (h *WalletHandler) Check(c *gin.Context) {
	var body struct {
		UUID     string `json:"uuid"      binding:"required"`
		PlayerID string `json:"player_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := requirePlayer(c, body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}

	if err := h.walletSvc.Check(c.Request.Context(), body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{
		"uuid":      body.UUID,
		"player_id": body.PlayerID,
	})
}

// mutationBody is the shared debit/credit request shape.
type mutationBody struct {
	UUID          string             `json:"uuid"           binding:"required"`
	TransactionID string             `json:"transaction_id" binding:"required"`
	PlayerID      string             `json:"player_id"      binding:"required"`
	Amount        decimal.Decimal    `json:"amount"         binding:"required"`
	Provider      *string            `json:"provider"`
	GameID        *string            `json:"game_id"`
	SessionID     *string            `json:"session_id"`
	Metadata      domain.MetadataMap `json:"metadata"`
}

func (b mutationBody) meta() service.TxMeta {
	return service.TxMeta{
		Provider:  b.Provider,
		GameID:    b.GameID,
		SessionID: b.SessionID,
		Metadata:  b.Metadata,
	}
}

// Debit godoc
// POST /api/debit [JWT]
// Exactly-once per transaction_id; duplicates are rejected.
func (h *WalletHandler) Debit(c *gin.Context) {
	var body mutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := requirePlayer(c, body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}

	res, err := h.walletSvc.Debit(c.Request.Context(), body.PlayerID, body.Amount, body.TransactionID, body.meta())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.amlSvc.ScheduleAnalysis(res.TransactionID)
	respondOK(c, gin.H{
		"balance":        res.Balance,
		"currency":       res.Currency,
		"transaction_id": res.TransactionID,
		"uuid":           body.UUID,
		"player_id":      body.PlayerID,
	})
}

// Credit godoc
// POST /api/credit [JWT]
// Idempotent per transaction_id; replays return the current balance.
func (h *WalletHandler) Credit(c *gin.Context) {
	var body mutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := requirePlayer(c, body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}

	res, err := h.walletSvc.Credit(c.Request.Context(), body.PlayerID, body.Amount, body.TransactionID, body.meta())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.amlSvc.ScheduleAnalysis(res.TransactionID)
	respondOK(c, gin.H{
		"balance":        res.Balance,
		"currency":       res.Currency,
		"transaction_id": res.TransactionID,
		"uuid":           body.UUID,
		"player_id":      body.PlayerID,
	})
}

// Cancel godoc
// POST /api/cancel [JWT]
// Idempotent per original_transaction_id.
func (h *WalletHandler) Cancel(c *gin.Context) {
	var body struct {
		UUID                  string `json:"uuid"                    binding:"required"`
		TransactionID         string `json:"transaction_id"          binding:"required"`
		PlayerID              string `json:"player_id"               binding:"required"`
		OriginalTransactionID string `json:"original_transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	if err := requirePlayer(c, body.PlayerID); err != nil {
		respondDomainError(c, err)
		return
	}

	res, err := h.walletSvc.Cancel(c.Request.Context(), body.PlayerID, body.TransactionID, body.OriginalTransactionID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{
		"balance":            res.Balance,
		"currency":           res.Currency,
		"transaction_id":     res.TransactionID,
		"ref_transaction_id": res.RefTransactionID,
		"uuid":               body.UUID,
		"player_id":          body.PlayerID,
	})
}
