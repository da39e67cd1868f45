package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kpi-service/internal/auth"
)

const (
	claimsKey    = "tokenClaims"
	subjectKey   = "subject"
	authHeader   = "Authorization"
	bearerPrefix = "Bearer"
)

func Auth(parser *auth.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(authHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header missing"})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := parser.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// Subject returns the authenticated subject, or "" on unauthenticated routes.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}
