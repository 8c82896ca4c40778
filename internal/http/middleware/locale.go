package middleware

import (
	"guessing_game/internal/i18n"

	"github.com/gin-gonic/gin"
)

// LocaleKey is the gin context key holding the negotiated locale
const LocaleKey = "locale"

// Locale picks the response language: ?lang= when supported, else Accept-Language, else fallback.
func Locale(fallback string) gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := c.Query("lang")
		if !i18n.Supported(locale) {
			locale = i18n.Match(c.GetHeader("Accept-Language"), fallback)
		}
		c.Set(LocaleKey, locale)
		c.Next()
	}
}
