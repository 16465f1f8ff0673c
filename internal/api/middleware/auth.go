package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nitebet/casino-core/internal/domain"
	"github.com/nitebet/casino-core/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxPlayerID = "playerID"
	CtxRole     = "role"
)

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the bearer token. Game providers launch the client
// with the token embedded in the entry URL, so the token is accepted from the
// Authorization header or from the params query value. On success the player
// id and role are stored in the gin context.
func JWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "ERROR",
				"code":   "invalid_credentials",
				"detail": domain.ErrInvalidCredentials.Error(),
			})
			return
		}

		claims, err := authSvc.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "ERROR",
				"code":   "invalid_credentials",
				"detail": domain.ErrTokenInvalid.Error(),
			})
			return
		}

		c.Set(CtxPlayerID, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// extractToken pulls the bearer token from the Authorization header or the
// params query parameter, in that order.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("params")
}

// ──────────────────────────────────────────────────────────────────────────────
// AdminMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// AdminMiddleware allows only admin credentials through. Must be placed after
// JWTMiddleware in the chain.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.Role(GetRole(c)).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status": "ERROR",
				"code":   "forbidden",
				"detail": domain.ErrForbidden.Error(),
			})
			return
		}
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers — extract identity from context (for use in handlers)
// ──────────────────────────────────────────────────────────────────────────────

// GetPlayerID retrieves the authenticated player id from the gin context.
// Returns "" if the middleware was not applied.
func GetPlayerID(c *gin.Context) string {
	v, _ := c.Get(CtxPlayerID)
	id, _ := v.(string)
	return id
}

// GetRole retrieves the authenticated credential's role string.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
