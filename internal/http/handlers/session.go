package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"guessing_game/internal/chain"
	"guessing_game/internal/logger"
	"guessing_game/internal/service"
	"guessing_game/internal/session"
	"guessing_game/internal/ws"

	"github.com/gin-gonic/gin"
)

// ConnectRequest selects and unlocks a wallet account; both fields are optional.
type ConnectRequest struct {
	Account    string `json:"account"`
	Passphrase string `json:"passphrase"`
}

// PlayRequest represents one guess
type PlayRequest struct {
	Guess *int64 `json:"guess" binding:"required"`
}

// statusFor maps controller errors to HTTP codes
func statusFor(err error) int {
	var callErr *session.CallError
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, session.ErrWalletUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrConnectionRejected):
		return http.StatusForbidden
	case errors.As(err, &callErr), errors.Is(err, session.ErrReadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, ctrl *session.Controller, err error) {
	resp := gin.H{"error": err.Error()}

	var callErr *session.CallError
	if errors.As(err, &callErr) {
		resp["reason"] = callErr.Reason
	}
	if ctrl != nil {
		v := h.view(c, ctrl)
		resp["session"] = v
		if v.Message != "" {
			resp["message"] = v.Message
		}
	}
	c.JSON(statusFor(err), resp)
}

// sessionFromHeader returns the session of a still valid bearer token, if any
func (h *Handler) sessionFromHeader(c *gin.Context) (*session.Controller, bool) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, false
	}
	sid, err := service.ParseJWT(token)
	if err != nil {
		return nil, false
	}
	return h.Sessions.Get(sid)
}

// Connect performs the wallet handshake and returns a session token.
// A caller holding a valid token reconnects its existing session.
func (h *Handler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctrl, existing := h.sessionFromHeader(c)
	if !existing {
		ctrl = h.Sessions.Create()
	}

	err := ctrl.Connect(c.Request.Context(), chain.HandshakeRequest{
		Account:    req.Account,
		Passphrase: req.Passphrase,
	})
	if err != nil {
		v := h.view(c, ctrl)
		if !existing {
			h.Sessions.Remove(ctrl.ID())
		}
		c.JSON(statusFor(err), gin.H{
			"error":   err.Error(),
			"message": v.Message,
		})
		return
	}

	token, err := service.GenerateJWT(ctrl.ID())
	if err != nil {
		logger.Error("failed to issue session token", "session", ctrl.ID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"session": h.view(c, ctrl),
	})
}

// GetSession returns the current session state
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, ok := h.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view(c, ctrl))
}

// Play submits one guess. With ?async=true it answers 202 right away and the
// outcome arrives over the websocket stream.
func (h *Handler) Play(c *gin.Context) {
	ctrl, ok := h.currentSession(c)
	if !ok {
		return
	}

	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	guess := *req.Guess

	// the transaction outlives the request; the controller applies its own timeout
	ctx := context.WithoutCancel(c.Request.Context())

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		st, err := ctrl.PlayAsync(ctx, guess, func(err error) {
			if err != nil {
				logger.Warn("async play failed", "session", ctrl.ID(), "error", err)
			}
		})
		if err != nil {
			h.fail(c, ctrl, err)
			return
		}
		c.JSON(http.StatusAccepted, ws.NewStatePayload(ctrl.ID(), st, h.locale(c), h.Deployment.Symbol))
		return
	}

	if err := ctrl.Play(ctx, guess); err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, h.view(c, ctrl))
}

// RefreshPrizePool re-reads the contract balance
func (h *Handler) RefreshPrizePool(c *gin.Context) {
	ctrl, ok := h.currentSession(c)
	if !ok {
		return
	}
	if err := ctrl.RefreshPrizePool(c.Request.Context()); err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, h.view(c, ctrl))
}

// FetchLastResult re-reads the account's last game
func (h *Handler) FetchLastResult(c *gin.Context) {
	ctrl, ok := h.currentSession(c)
	if !ok {
		return
	}
	if err := ctrl.FetchLastResult(c.Request.Context()); err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, h.view(c, ctrl))
}

// ListPlays returns the play log of the session's account
func (h *Handler) ListPlays(c *gin.Context) {
	ctrl, ok := h.currentSession(c)
	if !ok {
		return
	}
	if h.Plays == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "play log disabled"})
		return
	}

	account, ok := ctrl.Account()
	if !ok {
		h.fail(c, nil, session.ErrNotConnected)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	ctx := c.Request.Context()
	plays, err := h.Plays.GetByAccount(ctx, account.Hex(), limit)
	if err != nil {
		logger.Error("failed to load plays", "account", account.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	stats, err := h.Plays.GetStats(ctx, account.Hex())
	if err != nil {
		logger.Error("failed to load play stats", "account", account.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plays": plays,
		"stats": stats,
	})
}
