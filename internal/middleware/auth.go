package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CaretakerIDKey is the gin context key holding the authenticated caretaker
const CaretakerIDKey = "caretaker_id"

// TokenParser verifies a bearer token and returns the caretaker ID
type TokenParser interface {
	Parse(token string) (string, error)
}

// Auth requires a valid bearer token. Browsers cannot set headers on
// WebSocket upgrades, so a token query parameter is accepted too.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Authorization required",
			})
			return
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(CaretakerIDKey, id)
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
