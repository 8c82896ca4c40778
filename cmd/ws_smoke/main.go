package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/logger"
	"guessing_game/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type connectResponse struct {
	Token   string          `json:"token"`
	Session ws.StatePayload `json:"session"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Options{Level: "info"})
	defer logger.Sync()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	guess := flag.Int64("guess", 7, "number to play")
	lang := flag.String("lang", "en", "message language")
	timeout := flag.Duration("timeout", chain.DefaultTxTimeout, "how long to wait for the play to settle")
	flag.Parse()

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "127.0.0.1:" + port

	body, _ := json.Marshal(chain.HandshakeRequest{
		Account:    os.Getenv("SMOKE_ACCOUNT"),
		Passphrase: os.Getenv("KEYSTORE_PASSPHRASE"),
	})
	resp, err := http.Post("http://"+base+"/api/v1/session/connect", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatal("connect request", "error", err)
	}
	var cr connectResponse
	err = json.NewDecoder(resp.Body).Decode(&cr)
	resp.Body.Close()
	if err != nil {
		logger.Fatal("decode connect response", "error", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Fatal("connect failed", "status", resp.StatusCode, "error", cr.Error, "message", cr.Message)
	}
	logger.Info("connected", "account", cr.Session.Account, "prize_pool", cr.Session.PrizePool)

	wsURL := fmt.Sprintf("ws://%s/ws?token=%s&lang=%s", base, cr.Token, *lang)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial ws", "error", err)
	}
	defer conn.Close()

	// wait for ready (drain state messages)
	if _, err := readUntil(conn, 2*time.Second, func(env ws.Envelope) bool { return env.Type == ws.MsgReady }); err != nil {
		logger.Fatal("no ready frame", "error", err)
	}

	play, _ := json.Marshal(ws.Envelope{Type: ws.MsgPlay, Payload: mustJSON(ws.PlayPayload{Guess: *guess})})
	if err := conn.WriteMessage(websocket.TextMessage, play); err != nil {
		logger.Fatal("write play", "error", err)
	}

	started := false
	env, err := readUntil(conn, *timeout, func(env ws.Envelope) bool {
		if env.Type == ws.MsgError {
			return true
		}
		if env.Type != ws.MsgState {
			return false
		}
		var st ws.StatePayload
		if json.Unmarshal(env.Payload, &st) != nil {
			return false
		}
		logger.Info("state", "phase", st.Phase, "busy", st.Busy, "message", st.Message)
		if st.Busy {
			started = true
		}
		return started && !st.Busy
	})
	if err != nil {
		logger.Fatal("play did not settle", "error", err)
	}

	if env.Type == ws.MsgError {
		var ep ws.ErrorPayload
		_ = json.Unmarshal(env.Payload, &ep)
		logger.Fatal("play rejected", "message", ep.Message)
	}

	var st ws.StatePayload
	_ = json.Unmarshal(env.Payload, &st)
	logger.Info("smoke test finished", "result", st.ResultText, "message", st.Message, "prize_pool", st.PrizePool+" "+st.Symbol)
}

func readUntil(conn *websocket.Conn, wait time.Duration, done func(ws.Envelope) bool) (ws.Envelope, error) {
	deadline := time.Now().Add(wait)
	for {
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return ws.Envelope{}, err
		}
		var env ws.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		if done(env) {
			return env, nil
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
