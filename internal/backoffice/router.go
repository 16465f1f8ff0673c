package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/api"
	apihandler "github.com/nitebet/casino-core/internal/api/handler"
	"github.com/nitebet/casino-core/internal/backoffice/handler"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/service"
)

// BackofficeDeps bundles every dependency needed for the compliance router.
type BackofficeDeps struct {
	AuthSvc *service.AuthService
	AMLSvc  *service.AMLService
	Cfg     *config.Config
}

// SetupBackofficeRouter creates the compliance Gin engine. It serves the same
// AML endpoints as the main binary, on its own port behind an IP allow-list,
// so the review surface can be firewalled away from provider traffic.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipAllowlistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	overviewH := handler.NewOverviewHandler(deps.AMLSvc)
	playerH := handler.NewPlayerHandler(deps.AuthSvc)
	amlH := apihandler.NewAMLHandler(deps.AMLSvc)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/overview", overviewH.Overview)
		admin.DELETE("/players/:player_id", playerH.ErasePlayer)
		api.RegisterAMLRoutes(admin.Group("/aml"), amlH)
	}

	return r
}

// ── IP allow-list middleware ──────────────────────────────────────────────────

// ipAllowlistMiddleware blocks requests from IPs outside the allow-list.
// An empty list means no restriction (development).
func ipAllowlistMiddleware(allowedIPs []string) gin.HandlerFunc {
	if len(allowedIPs) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: IP not allowed",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a bearer token and requires the admin role.
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !domain.Role(claims.Role).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("playerID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
