package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"claimease/internal/service"
)

const (
	ContextKeyClient = "client"
	ContextKeyClaims = "claims"
)

// AuthMiddleware returns Gin middleware that validates bearer service tokens
// and injects the calling client into the context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		c.Set(ContextKeyClient, claims.Subject)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClient returns the authenticated client name, or "" when the request
// was not authenticated.
func GetClient(c *gin.Context) string {
	val, exists := c.Get(ContextKeyClient)
	if !exists {
		return ""
	}
	return val.(string)
}
