// internal/protocol/outbound.go
package protocol

import (
	"encoding/json"

	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/models"
)

// Event is a server -> client frame. Only the fields relevant to Type are set;
// everything else is omitted from the JSON.
type Event struct {
	Type EventType `json:"type"`

	RoomCode string      `json:"roomCode,omitempty"`
	RoomID   string      `json:"roomId,omitempty"`
	Mode     models.Mode `json:"mode,omitempty"`

	PartnerMeta *models.Profile `json:"partnerMeta,omitempty"`
	Symbol      game.Mark       `json:"symbol,omitempty"`
	Initiator   *bool           `json:"initiator,omitempty"`

	// relayed chat
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	FileMeta  json.RawMessage `json:"fileMeta,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Emoji     string          `json:"emoji,omitempty"`

	// game
	CellIndex *int        `json:"cellIndex,omitempty"`
	NewBoard  *game.Board `json:"newBoard,omitempty"`
	NextTurn  game.Mark   `json:"nextTurn,omitempty"`
	Winner    game.Mark   `json:"winner,omitempty"`
	Draw      bool        `json:"draw,omitempty"`

	// signaling
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// invite
	ClientID string `json:"clientId,omitempty"`
	Username string `json:"username,omitempty"`

	// error
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Event   EventType `json:"event,omitempty"`
}

// Bool returns a pointer for the optional boolean fields.
func Bool(b bool) *bool { return &b }

// Int returns a pointer for the optional integer fields.
func Int(i int) *int { return &i }

// ErrorEvent builds the rejection sent back to the originator of a bad event.
func ErrorEvent(code, message string, cause EventType) Event {
	return Event{Type: TypeError, Code: code, Message: message, Event: cause}
}
