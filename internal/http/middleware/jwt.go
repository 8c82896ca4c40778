package middleware

import (
	"errors"
	"net/http"
	"strings"

	"guessing_game/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionIDKey is the gin context key holding the authenticated session id
const SessionIDKey = "session_id"

// JWT authenticates "Authorization: Bearer <token>" and stores the session id in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sessionID, err := service.ParseJWT(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, service.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}
