package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/api/handler"
	"github.com/nitebet/casino-core/internal/api/middleware"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/nitebet/casino-core/internal/service"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc   *service.AuthService
	WalletSvc *service.WalletService
	AMLSvc    *service.AMLService
	Cfg       *config.Config
}

// SetupRouter creates and configures the main Gin engine: the operator
// bootstrap route, the provider wallet protocol, and the admin AML surface.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(deps.AuthSvc)
	walletH := handler.NewWalletHandler(deps.WalletSvc, deps.AMLSvc)
	amlH := handler.NewAMLHandler(deps.AMLSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	bootstrapRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for bootstrap
	walletRL := middleware.RateLimitMiddleware(50)    // providers burst on settlement

	// ── Operator bootstrap (credentialed by URL, strict rate limit) ──────────
	r.POST("/ua/v1/:casino_key/:api_token", bootstrapRL, authH.Bootstrap)

	// ── Provider wallet protocol ─────────────────────────────────────────────
	api := r.Group("/api")
	api.Use(jwtMW, walletRL)
	{
		api.POST("/balance", walletH.Balance)
		api.POST("/check", walletH.Check)
		api.POST("/debit", walletH.Debit)
		api.POST("/credit", walletH.Credit)
		api.POST("/cancel", walletH.Cancel)
	}

	// ── AML surface (admin only) ─────────────────────────────────────────────
	aml := r.Group("/aml")
	aml.Use(jwtMW, middleware.AdminMiddleware())
	RegisterAMLRoutes(aml, amlH)

	return r
}

// RegisterAMLRoutes mounts the compliance endpoints on group. The backoffice
// binary mounts the same set behind its own middleware chain.
func RegisterAMLRoutes(group *gin.RouterGroup, amlH *handler.AMLHandler) {
	group.POST("/analyze-transaction/:transaction_id", amlH.AnalyzeTransaction)

	group.POST("/alerts", amlH.CreateAlert)
	group.GET("/alerts", amlH.ListAlerts)
	group.GET("/alerts/:id", amlH.GetAlert)
	group.PUT("/alerts/:id/status", amlH.UpdateAlertStatus)

	group.GET("/player/:player_id/alerts", amlH.PlayerAlerts)
	group.GET("/player/:player_id/transactions", amlH.PlayerTransactions)
	group.GET("/player/:player_id/risk-profile", amlH.RiskProfile)
	group.GET("/high-risk-players", amlH.HighRiskPlayers)

	group.POST("/report", amlH.CreateReport)
	group.GET("/report/:report_id", amlH.GetReport)
	group.PUT("/report/:report_id/status", amlH.UpdateReportStatus)
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware sets CORS headers. In development all origins are allowed;
// in production only hosts from ALLOWED_HOSTS.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedHosts))
	for _, host := range cfg.Server.AllowedHosts {
		allowed[host] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
