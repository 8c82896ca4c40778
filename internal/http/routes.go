package http

import (
	"os"
	"strconv"
	"time"

	"guessing_game/internal/config"
	"guessing_game/internal/http/handlers"
	"guessing_game/internal/http/middleware"
	"guessing_game/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API, the state stream and the operational endpoints.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, cfg *config.Config) {
	// read limits from env, with safe defaults
	apiRateLimit := 120
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateLimit = n
		}
	}
	apiRateWindow := time.Minute
	if v := os.Getenv("API_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateWindow = time.Duration(n) * time.Second
		}
	}

	connectRateLimit := 5
	if v := os.Getenv("CONNECT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			connectRateLimit = n
		}
	}
	connectRateWindow := time.Minute

	r.Use(middleware.RequestMetrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit("api", apiRateLimit, apiRateWindow), middleware.Locale(cfg.DefaultLocale))

	v1.GET("/config", h.GetConfig)

	// Play rate limiter (per session, not per IP), shared by HTTP and websocket plays
	playLimiter := middleware.NewPlayLimiter(cfg.PlayRateLimit, time.Duration(cfg.PlayRateWindow)*time.Second)
	playRL := middleware.PlayRateLimit(playLimiter)

	sess := v1.Group("/session")
	{
		sess.POST("/connect", middleware.RateLimit("connect", connectRateLimit, connectRateWindow), h.Connect)
		sess.GET("", middleware.JWT(), h.GetSession)
		sess.POST("/play", middleware.JWT(), playRL, h.Play)
		sess.POST("/prize-pool", middleware.JWT(), h.RefreshPrizePool)
		sess.POST("/last-result", middleware.JWT(), h.FetchLastResult)
	}
	v1.GET("/plays", middleware.JWT(), h.ListPlays)

	// WebSocket state stream
	r.GET("/ws", ws.HandleWS(hub, h.Sessions, playLimiter, cfg.DefaultLocale, cfg.AllowedOrigin))
}
