package ws

import (
	"encoding/json"

	"github.com/RMRattray/national-recording-rummy/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// RegisterPlayerMsg binds the connection to the handle returned by POST /join.
type RegisterPlayerMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// MoveMsg submits a move for the registered player.
// Example: {"type":"move","move":"discard","card":{"suit":"Hearts","value":"ACE"}}
type MoveMsg struct {
	Type string `json:"type"`
	game.MovePayload
}

// --- Server-to-Client messages ---

// RegisteredMsg confirms register_player.
type RegisteredMsg struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	PlayerID string `json:"player_id"`
}

// ErrorMsg is sent when a client action is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
