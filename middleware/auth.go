package middleware

import (
	"net/http"
	"strings"

	"github.com/jwolfsohn/Atlas-Sentinel/services"

	"github.com/gin-gonic/gin"
)

const ClaimsKey = "claims"

// RequireOperator admits requests carrying a valid operator token, either as a
// Bearer Authorization header or a token query parameter.
func RequireOperator(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if !claims.IsOperator() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator role required"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
