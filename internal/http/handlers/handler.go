package handlers

import (
	"context"
	"net/http"

	"guessing_game/internal/domain"
	"guessing_game/internal/http/middleware"
	"guessing_game/internal/repository"
	"guessing_game/internal/session"
	"guessing_game/internal/ws"

	"github.com/gin-gonic/gin"
)

// PlayStore is the read side of the play log
type PlayStore interface {
	GetByAccount(ctx context.Context, account string, limit int) ([]*domain.PlayRecord, error)
	GetStats(ctx context.Context, account string) (*repository.PlayStats, error)
}

// DeploymentInfo - public facts about the contract this instance plays against
type DeploymentInfo struct {
	Name          string `json:"name"`
	ChainID       int64  `json:"chain_id"`
	Contract      string `json:"contract"`
	Stake         string `json:"stake"`
	StakeWei      string `json:"stake_wei"`
	Symbol        string `json:"symbol"`
	GuessMin      int64  `json:"guess_min"`
	GuessMax      int64  `json:"guess_max"`
	DefaultLocale string `json:"default_locale"`
}

type Handler struct {
	Sessions   *session.Registry
	Plays      PlayStore // nil when DATABASE_URL is not set
	Deployment DeploymentInfo
}

func NewHandler(sessions *session.Registry, plays PlayStore, dep DeploymentInfo) *Handler {
	return &Handler{
		Sessions:   sessions,
		Plays:      plays,
		Deployment: dep,
	}
}

// getSessionID извлекает session_id из контекста Gin
func getSessionID(c *gin.Context) (string, bool) {
	sid := c.GetString(middleware.SessionIDKey)
	return sid, sid != ""
}

// currentSession resolves the authenticated session or writes the error response
func (h *Handler) currentSession(c *gin.Context) (*session.Controller, bool) {
	sid, ok := getSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	ctrl, ok := h.Sessions.Get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) locale(c *gin.Context) string {
	if l := c.GetString(middleware.LocaleKey); l != "" {
		return l
	}
	return h.Deployment.DefaultLocale
}

func (h *Handler) view(c *gin.Context, ctrl *session.Controller) ws.StatePayload {
	return ws.NewStatePayload(ctrl.ID(), ctrl.Snapshot(), h.locale(c), h.Deployment.Symbol)
}
