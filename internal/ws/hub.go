package ws

import (
	"sync"

	"guessing_game/internal/domain"
	"guessing_game/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "guess_ws_connections",
	Help: "Open websocket state streams",
})

func init() {
	prometheus.MustRegister(wsConnections)
}

// Hub fans session snapshots out to every stream opened for that session.
// It is the session.Observer of all controllers built by the server.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	symbol  string
}

func NewHub(symbol string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		symbol:  symbol,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.SessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	wsConnections.Inc()
	logger.Debug("ws client registered", "session", c.SessionID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.SessionID)
	}
	wsConnections.Dec()
	logger.Debug("ws client unregistered", "session", c.SessionID)
}

// Count returns the number of open streams for a session
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// SessionChanged pushes the new state to the session's streams, rendered once per locale.
func (h *Hub) SessionChanged(id string, st domain.SessionState) {
	h.mu.RLock()
	set := h.clients[id]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	rendered := make(map[string][]byte, 1)
	for _, c := range targets {
		msg, ok := rendered[c.Locale]
		if !ok {
			var err error
			msg, err = encode(MsgState, NewStatePayload(id, st, c.Locale, h.symbol))
			if err != nil {
				logger.Error("failed to encode state", "session", id, "error", err)
				return
			}
			rendered[c.Locale] = msg
		}
		c.enqueue(msg)
	}
}
