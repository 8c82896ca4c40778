package ws

import (
	"net/http"

	"guessing_game/internal/i18n"
	"guessing_game/internal/logger"
	"guessing_game/internal/service"
	"guessing_game/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades /ws?token=... into a state stream for the token's session.
// limiter may be nil.
func HandleWS(hub *Hub, sessions *session.Registry, limiter PlayLimiter, defaultLocale, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		sessionID, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctrl, ok := sessions.Get(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		locale := c.Query("lang")
		if !i18n.Supported(locale) {
			locale = i18n.Match(c.GetHeader("Accept-Language"), defaultLocale)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(ctrl, locale, conn, hub, limiter)
		go client.Run()
	}
}
