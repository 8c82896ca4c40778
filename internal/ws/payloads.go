package ws

import (
	"encoding/json"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/domain"
	"guessing_game/internal/i18n"
)

// Envelope wraps every frame in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client → server
type PlayPayload struct {
	Guess int64 `json:"guess"`
}

// server → client
type ErrorPayload struct {
	Message string `json:"message"`
}

// StatePayload is the rendered session state shared by the websocket stream and the HTTP API.
type StatePayload struct {
	SessionID    string             `json:"session_id"`
	Connected    bool               `json:"connected"`
	Account      string             `json:"account,omitempty"`
	AccountShort string             `json:"account_short,omitempty"`
	PrizePool    string             `json:"prize_pool"`
	Symbol       string             `json:"symbol"`
	LastResult   *domain.LastResult `json:"last_result,omitempty"`
	ResultText   string             `json:"result_text,omitempty"`
	PendingGuess *int64             `json:"pending_guess,omitempty"`
	Busy         bool               `json:"busy"`
	Phase        domain.Phase       `json:"phase"`
	Status       *domain.Status     `json:"status,omitempty"`
	Message      string             `json:"message,omitempty"`
	Locale       string             `json:"locale"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewStatePayload renders st for one locale
func NewStatePayload(id string, st domain.SessionState, locale, symbol string) StatePayload {
	return StatePayload{
		SessionID:    id,
		Connected:    st.Connected,
		Account:      st.Account,
		AccountShort: chain.ShortAddress(st.Account),
		PrizePool:    st.PrizePool,
		Symbol:       symbol,
		LastResult:   st.LastResult,
		ResultText:   i18n.ResultText(locale, st.LastResult, symbol),
		PendingGuess: st.PendingGuess,
		Busy:         st.Busy,
		Phase:        st.Phase,
		Status:       st.Status,
		Message:      i18n.Text(locale, st.Status),
		Locale:       locale,
		UpdatedAt:    st.UpdatedAt,
	}
}

func encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = b
	}
	return json.Marshal(env)
}
