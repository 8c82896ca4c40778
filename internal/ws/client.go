package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"guessing_game/internal/domain"
	"guessing_game/internal/i18n"
	"guessing_game/internal/logger"
	"guessing_game/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

// PlayLimiter caps plays per session; the HTTP play route counts against the same limiter.
type PlayLimiter interface {
	AllowPlay(ctx context.Context, sessionID string) bool
}

type Client struct {
	SessionID string
	Locale    string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	Done      chan struct{}

	ctrl    *session.Controller
	limiter PlayLimiter

	// set while a refresh is running; further refresh frames are dropped
	refreshing atomic.Bool
}

func NewClient(ctrl *session.Controller, locale string, conn *websocket.Conn, hub *Hub, limiter PlayLimiter) *Client {
	return &Client{
		SessionID: ctrl.ID(),
		Locale:    locale,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		Hub:       hub,
		Done:      make(chan struct{}),
		ctrl:      ctrl,
		limiter:   limiter,
	}
}

// Run registers the stream, sends the current state and blocks until the peer goes away.
func (c *Client) Run() {
	c.Hub.Register(c)
	go c.writePump()

	if msg, err := encode(MsgReady, nil); err == nil {
		c.enqueue(msg)
	}
	c.pushState()

	c.readPump()
}

func (c *Client) pushState() {
	msg, err := encode(MsgState, NewStatePayload(c.SessionID, c.ctrl.Snapshot(), c.Locale, c.Hub.symbol))
	if err != nil {
		logger.Error("failed to encode state", "session", c.SessionID, "error", err)
		return
	}
	c.enqueue(msg)
}

func (c *Client) sendError(text string) {
	if msg, err := encode(MsgError, ErrorPayload{Message: text}); err == nil {
		c.enqueue(msg)
	}
}

// enqueue never blocks; a stream that cannot keep up loses frames, the next state supersedes them
func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.Done:
	case c.Send <- msg:
	default:
		logger.Warn("ws send buffer full, dropping frame", "session", c.SessionID)
	}
}

// read
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		close(c.Done)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error", "session", c.SessionID, "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError("invalid message")
		return
	}

	switch env.Type {
	case MsgPing:
		if msg, err := encode(MsgPong, nil); err == nil {
			c.enqueue(msg)
		}
	case MsgPlay:
		var p PlayPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("invalid play payload")
			return
		}
		c.play(p.Guess)
	case MsgRefresh:
		if !c.refreshing.CompareAndSwap(false, true) {
			return
		}
		go func() {
			defer c.refreshing.Store(false)
			c.refresh()
		}()
	default:
		c.sendError("unknown message type: " + env.Type)
	}
}

func (c *Client) play(guess int64) {
	// the controller bounds the play with its own timeout; a dropped stream must not cancel it
	ctx := context.Background()

	if c.limiter != nil && !c.limiter.AllowPlay(ctx, c.SessionID) {
		c.sendError(i18n.Text(c.Locale, &domain.Status{Key: domain.MsgRateLimited}))
		return
	}

	_, err := c.ctrl.PlayAsync(ctx, guess, func(err error) {
		if err != nil {
			logger.Debug("ws play finished with error", "session", c.SessionID, "error", err)
		}
	})
	if errors.Is(err, session.ErrBusy) {
		c.sendError(i18n.Text(c.Locale, &domain.Status{Key: domain.MsgBusy}))
		return
	}
	// validation failures already reached the stream as a state update
	if err != nil {
		logger.Debug("ws play rejected", "session", c.SessionID, "error", err)
	}
}

func (c *Client) refresh() {
	ctx := context.Background()
	_ = c.ctrl.RefreshPrizePool(ctx)
	_ = c.ctrl.FetchLastResult(ctx)
	c.pushState()
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "session", c.SessionID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
