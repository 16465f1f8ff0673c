package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Provider-protocol responses (wallet surface)
// ──────────────────────────────────────────────────────────────────────────────

// respondOK writes a flat provider-protocol body with status OK merged in.
func respondOK(c *gin.Context, fields gin.H) {
	body := gin.H{"status": "OK"}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// respondDomainError translates a domain error to its HTTP status and writes
// {"status":"ERROR","code":...,"detail":...} with the detail localized from
// Accept-Language. Unknown errors become 500 and are logged server-side.
func respondDomainError(c *gin.Context, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status": "ERROR",
		"code":   code,
		"detail": localize(c, code),
	})
}

// classify maps a domain error chain to its wire code and HTTP status.
func classify(err error) (code string, status int) {
	switch {
	case errors.Is(err, domain.ErrPlayerIDMismatch):
		return "player_id_mismatch", http.StatusForbidden
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden", http.StatusForbidden
	case errors.Is(err, domain.ErrPlayerNotFound):
		return "player_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrWalletNotFound):
		return "wallet_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrTransactionNotFound):
		return "transaction_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrAlertNotFound):
		return "alert_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrRiskProfileNotFound):
		return "risk_profile_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrReportNotFound):
		return "report_not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrTransactionAlreadyProcessed):
		return "transaction_already_processed", http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAlertTransition):
		return "invalid_alert_transition", http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request", http.StatusUnprocessableEntity
	case domain.IsAuthError(err):
		return "invalid_credentials", http.StatusUnauthorized
	default:
		return "internal_server_error", http.StatusInternalServerError
	}
}

// respondValidationError reports a malformed request body.
func respondValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status": "ERROR",
		"code":   "validation_error",
		"detail": err.Error(),
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Admin-surface responses (AML endpoints)
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Locale catalog
// ──────────────────────────────────────────────────────────────────────────────

// catalog holds the user-visible detail strings per locale and error code.
var catalog = map[string]map[string]string{
	"en": {
		"player_id_mismatch":            "player id does not match the authenticated player",
		"forbidden":                     "insufficient permissions",
		"player_not_found":              "player not found",
		"wallet_not_found":              "wallet not found",
		"transaction_not_found":         "transaction not found",
		"alert_not_found":               "alert not found",
		"risk_profile_not_found":        "risk profile not found",
		"report_not_found":              "report not found",
		"transaction_already_processed": "transaction already processed",
		"invalid_alert_transition":      "alert status transition not allowed",
		"insufficient_funds":            "insufficient funds",
		"invalid_amount":                "amount must be positive with at most two decimal places",
		"invalid_request":               "request contains an invalid field",
		"invalid_credentials":           "invalid credentials",
		"internal_server_error":         "internal server error",
	},
	"tr": {
		"player_id_mismatch":            "oyuncu kimliği oturumdaki oyuncuyla eşleşmiyor",
		"forbidden":                     "yetkiniz yok",
		"player_not_found":              "oyuncu bulunamadı",
		"wallet_not_found":              "cüzdan bulunamadı",
		"transaction_not_found":         "işlem bulunamadı",
		"alert_not_found":               "uyarı bulunamadı",
		"risk_profile_not_found":        "risk profili bulunamadı",
		"report_not_found":              "rapor bulunamadı",
		"transaction_already_processed": "işlem daha önce gerçekleştirildi",
		"invalid_alert_transition":      "uyarı durumu bu geçişe izin vermiyor",
		"insufficient_funds":            "yetersiz bakiye",
		"invalid_amount":                "tutar pozitif ve en fazla iki ondalık basamaklı olmalı",
		"invalid_request":               "istek geçersiz bir alan içeriyor",
		"invalid_credentials":           "geçersiz kimlik bilgileri",
		"internal_server_error":         "sunucu hatası",
	},
}

// localize resolves the detail string for code from the request locale.
func localize(c *gin.Context, code string) string {
	messages, ok := catalog[requestLocale(c)]
	if !ok {
		messages = catalog["en"]
	}
	if msg, ok := messages[code]; ok {
		return msg
	}
	return catalog["en"][code]
}

// requestLocale derives the locale from Accept-Language; English is the
// fallback. Only the primary subtag is considered.
func requestLocale(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return "en"
	}
	primary := strings.TrimSpace(strings.Split(header, ",")[0])
	if i := strings.IndexAny(primary, "-_;"); i > 0 {
		primary = primary[:i]
	}
	primary = strings.ToLower(primary)
	if _, ok := catalog[primary]; ok {
		return primary
	}
	return "en"
}
