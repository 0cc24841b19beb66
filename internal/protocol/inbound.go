// internal/protocol/inbound.go
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/models"
)

var (
	ErrMalformed    = errors.New("malformed event")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
	ErrTooLong      = errors.New("field too long")
)

// inviteRoomID is the accepted shape of an externally supplied invite room id.
var inviteRoomID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// DecodeError describes why an inbound frame was rejected.
type DecodeError struct {
	Type  EventType
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func fieldErr(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Err: err}
}

// Inbound is the closed set of events a client may send. Only types in this
// package implement it.
type Inbound interface {
	Kind() EventType
	sealed()
}

// validator is implemented by the pointer form of every Inbound type.
type validator interface {
	Inbound
	validate(l Limits) *DecodeError
}

// RoomScoped is an inbound event addressed to the sender's current room.
type RoomScoped interface {
	Inbound
	Room() string
}

type LookingForPartner struct {
	Mode models.Mode `json:"mode"`
}

type StopLooking struct{}

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
}

type Message struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	RoomCode string `json:"roomCode"`
}

type FileMessage struct {
	ID       string          `json:"id"`
	FileMeta json.RawMessage `json:"fileMeta"`
	RoomCode string          `json:"roomCode"`
}

type Typing struct {
	RoomCode string `json:"roomCode"`
}

type Reaction struct {
	RoomCode  string `json:"roomCode"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// GameMove carries the client's claimed symbol; the server checks it against
// the symbol it assigned and never trusts a client computed board.
type GameMove struct {
	RoomCode  string    `json:"roomCode"`
	CellIndex *int      `json:"cellIndex"`
	Symbol    game.Mark `json:"symbol"`
}

type GameReset struct {
	RoomCode string `json:"roomCode"`
}

type DisconnectByUser struct {
	// Requeue puts the leaver straight back into the queue for the same mode.
	Requeue bool `json:"requeue,omitempty"`
}

// Signal is an offer, answer or ICE candidate. Payload is forwarded untouched.
type Signal struct {
	Type     EventType       `json:"type"`
	RoomCode string          `json:"roomCode"`
	SDP      json.RawMessage `json:"sdp,omitempty"`
	Cand     json.RawMessage `json:"candidate,omitempty"`
}

type InviteJoin struct {
	RoomID   string      `json:"roomId"`
	Mode     models.Mode `json:"mode"`
	Username string      `json:"username"`
}

type InviteChat struct {
	RoomID   string `json:"roomId"`
	Text     string `json:"text"`
	ClientID string `json:"clientId"`
}

// InviteReceipt is inviteDelivered, inviteAck or inviteSeen.
type InviteReceipt struct {
	Type     EventType `json:"type"`
	RoomID   string    `json:"roomId"`
	ClientID string    `json:"clientId"`
}

type InviteLeave struct {
	RoomID string `json:"roomId"`
}

type Ping struct{}

func (LookingForPartner) Kind() EventType { return TypeLookingForPartner }
func (StopLooking) Kind() EventType       { return TypeStopLooking }
func (JoinRoom) Kind() EventType          { return TypeJoinRoom }
func (Message) Kind() EventType           { return TypeMessage }
func (FileMessage) Kind() EventType       { return TypeFileMessage }
func (Typing) Kind() EventType            { return TypeTyping }
func (Reaction) Kind() EventType          { return TypeReaction }
func (GameMove) Kind() EventType          { return TypeGameMove }
func (GameReset) Kind() EventType         { return TypeGameReset }
func (DisconnectByUser) Kind() EventType  { return TypeDisconnectByUser }
func (s Signal) Kind() EventType          { return s.Type }
func (InviteJoin) Kind() EventType        { return TypeInviteJoin }
func (InviteChat) Kind() EventType        { return TypeInviteChat }
func (r InviteReceipt) Kind() EventType   { return r.Type }
func (InviteLeave) Kind() EventType       { return TypeInviteLeave }
func (Ping) Kind() EventType              { return TypePing }

func (LookingForPartner) sealed() {}
func (StopLooking) sealed()       {}
func (JoinRoom) sealed()          {}
func (Message) sealed()           {}
func (FileMessage) sealed()       {}
func (Typing) sealed()            {}
func (Reaction) sealed()          {}
func (GameMove) sealed()          {}
func (GameReset) sealed()         {}
func (DisconnectByUser) sealed()  {}
func (Signal) sealed()            {}
func (InviteJoin) sealed()        {}
func (InviteChat) sealed()        {}
func (InviteReceipt) sealed()     {}
func (InviteLeave) sealed()       {}
func (Ping) sealed()              {}

func (e JoinRoom) Room() string    { return e.RoomCode }
func (e Message) Room() string     { return e.RoomCode }
func (e FileMessage) Room() string { return e.RoomCode }
func (e Typing) Room() string      { return e.RoomCode }
func (e Reaction) Room() string    { return e.RoomCode }
func (e GameMove) Room() string    { return e.RoomCode }
func (e GameReset) Room() string   { return e.RoomCode }
func (e Signal) Room() string      { return e.RoomCode }

// Cell returns the move's cell index. Only valid after Decode succeeded.
func (e GameMove) Cell() int { return *e.CellIndex }

// Payload returns the raw negotiation body, whichever field carries it.
func (s Signal) Payload() json.RawMessage {
	if s.Type == TypeCandidate {
		return s.Cand
	}
	return s.SDP
}

func newInbound(t EventType) validator {
	switch t {
	case TypeLookingForPartner:
		return &LookingForPartner{}
	case TypeStopLooking:
		return &StopLooking{}
	case TypeJoinRoom:
		return &JoinRoom{}
	case TypeMessage:
		return &Message{}
	case TypeFileMessage:
		return &FileMessage{}
	case TypeTyping:
		return &Typing{}
	case TypeReaction:
		return &Reaction{}
	case TypeGameMove:
		return &GameMove{}
	case TypeGameReset:
		return &GameReset{}
	case TypeDisconnectByUser:
		return &DisconnectByUser{}
	case TypeOffer, TypeAnswer, TypeCandidate:
		return &Signal{Type: t}
	case TypeInviteJoin:
		return &InviteJoin{}
	case TypeInviteChat:
		return &InviteChat{}
	case TypeInviteDelivered, TypeInviteAck, TypeInviteSeen:
		return &InviteReceipt{Type: t}
	case TypeInviteLeave:
		return &InviteLeave{}
	case TypePing:
		return &Ping{}
	}
	return nil
}

// Decode parses one text frame into its typed variant and validates the
// required fields. The returned value is a value type (not a pointer).
func Decode(data []byte, l Limits) (Inbound, error) {
	l = l.withDefaults()

	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if head.Type == "" {
		return nil, &DecodeError{Field: "type", Err: ErrMissingField}
	}

	ev := newInbound(head.Type)
	if ev == nil {
		return nil, &DecodeError{Type: head.Type, Err: ErrUnknownEvent}
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, &DecodeError{Type: head.Type, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if derr := ev.validate(l); derr != nil {
		derr.Type = head.Type
		return nil, derr
	}
	return deref(ev), nil
}

func deref(ev validator) Inbound {
	switch v := ev.(type) {
	case *LookingForPartner:
		return *v
	case *StopLooking:
		return *v
	case *JoinRoom:
		return *v
	case *Message:
		return *v
	case *FileMessage:
		return *v
	case *Typing:
		return *v
	case *Reaction:
		return *v
	case *GameMove:
		return *v
	case *GameReset:
		return *v
	case *DisconnectByUser:
		return *v
	case *Signal:
		return *v
	case *InviteJoin:
		return *v
	case *InviteChat:
		return *v
	case *InviteReceipt:
		return *v
	case *InviteLeave:
		return *v
	case *Ping:
		return *v
	}
	return ev
}

func requireString(field, v string, max int) *DecodeError {
	if v == "" {
		return fieldErr(field, ErrMissingField)
	}
	if utf8.RuneCountInString(v) > max {
		return fieldErr(field, ErrTooLong)
	}
	return nil
}

func requireInviteRoom(v string) *DecodeError {
	if v == "" {
		return fieldErr("roomId", ErrMissingField)
	}
	if !inviteRoomID.MatchString(v) {
		return fieldErr("roomId", ErrInvalidField)
	}
	// matchmaking room codes are canonical uuids
	if len(v) == 36 {
		if _, err := uuid.Parse(v); err == nil {
			return fieldErr("roomId", ErrInvalidField)
		}
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) >= 2 && raw[0] == '{' && json.Valid(raw)
}

func (e *LookingForPartner) validate(Limits) *DecodeError {
	if e.Mode == "" {
		return fieldErr("mode", ErrMissingField)
	}
	if !e.Mode.Valid() {
		return fieldErr("mode", ErrInvalidField)
	}
	return nil
}

func (*StopLooking) validate(Limits) *DecodeError { return nil }

func (e *JoinRoom) validate(l Limits) *DecodeError {
	return requireString("roomCode", e.RoomCode, l.MaxIDLen)
}

func (e *Message) validate(l Limits) *DecodeError {
	if err := requireString("id", e.ID, l.MaxIDLen); err != nil {
		return err
	}
	if err := requireString("text", e.Text, l.MaxTextLen); err != nil {
		return err
	}
	return requireString("roomCode", e.RoomCode, l.MaxIDLen)
}

func (e *FileMessage) validate(l Limits) *DecodeError {
	if err := requireString("id", e.ID, l.MaxIDLen); err != nil {
		return err
	}
	if len(e.FileMeta) == 0 {
		return fieldErr("fileMeta", ErrMissingField)
	}
	if !isJSONObject(e.FileMeta) {
		return fieldErr("fileMeta", ErrInvalidField)
	}
	if len(e.FileMeta) > l.MaxSignalBytes {
		return fieldErr("fileMeta", ErrTooLong)
	}
	return requireString("roomCode", e.RoomCode, l.MaxIDLen)
}

func (e *Typing) validate(l Limits) *DecodeError {
	return requireString("roomCode", e.RoomCode, l.MaxIDLen)
}

func (e *Reaction) validate(l Limits) *DecodeError {
	if err := requireString("roomCode", e.RoomCode, l.MaxIDLen); err != nil {
		return err
	}
	if err := requireString("messageId", e.MessageID, l.MaxIDLen); err != nil {
		return err
	}
	return requireString("emoji", e.Emoji, l.MaxEmojiLen)
}

func (e *GameMove) validate(l Limits) *DecodeError {
	if err := requireString("roomCode", e.RoomCode, l.MaxIDLen); err != nil {
		return err
	}
	if e.CellIndex == nil {
		return fieldErr("cellIndex", ErrMissingField)
	}
	if *e.CellIndex < 0 || *e.CellIndex >= game.CellCount {
		return fieldErr("cellIndex", ErrInvalidField)
	}
	if !e.Symbol.Valid() {
		return fieldErr("symbol", ErrInvalidField)
	}
	return nil
}

func (e *GameReset) validate(l Limits) *DecodeError {
	return requireString("roomCode", e.RoomCode, l.MaxIDLen)
}

func (*DisconnectByUser) validate(Limits) *DecodeError { return nil }

func (e *Signal) validate(l Limits) *DecodeError {
	if err := requireString("roomCode", e.RoomCode, l.MaxIDLen); err != nil {
		return err
	}
	if e.Type == TypeCandidate {
		return validateCandidate(e.Cand, l)
	}
	return validateSessionDescription(e.Type, e.SDP, l)
}

func (e *InviteJoin) validate(l Limits) *DecodeError {
	if err := requireInviteRoom(e.RoomID); err != nil {
		return err
	}
	if e.Mode == "" {
		e.Mode = models.ModeText
	}
	if !e.Mode.Valid() {
		return fieldErr("mode", ErrInvalidField)
	}
	if utf8.RuneCountInString(e.Username) > models.MaxNameLen {
		return fieldErr("username", ErrTooLong)
	}
	return nil
}

func (e *InviteChat) validate(l Limits) *DecodeError {
	if err := requireInviteRoom(e.RoomID); err != nil {
		return err
	}
	if err := requireString("text", e.Text, l.MaxTextLen); err != nil {
		return err
	}
	return requireString("clientId", e.ClientID, l.MaxIDLen)
}

func (e *InviteReceipt) validate(l Limits) *DecodeError {
	if err := requireInviteRoom(e.RoomID); err != nil {
		return err
	}
	return requireString("clientId", e.ClientID, l.MaxIDLen)
}

func (e *InviteLeave) validate(Limits) *DecodeError {
	return requireInviteRoom(e.RoomID)
}

func (*Ping) validate(Limits) *DecodeError { return nil }
