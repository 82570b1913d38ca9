package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

const operatorKey = "operator"

// AuthMiddleware validates the bearer token on every request. When no JWT
// secret is configured the API runs open, suited to localhost-only use.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}
		claims, err := security.ValidateJWT(strings.TrimPrefix(header, "Bearer "), jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		operator, ok := security.OperatorFromClaims(claims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			c.Abort()
			return
		}
		c.Set(operatorKey, operator)
		c.Next()
	}
}

// GetOperator returns the authenticated operator's username, if any.
func GetOperator(c *gin.Context) (string, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return "", false
	}
	operator, ok := v.(string)
	return operator, ok
}
