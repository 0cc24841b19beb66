// internal/session/errors.go
package session

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/protocol"
)

// ErrNoRoom is the state error for events that reference no live room of the
// sender. These are dropped without a reply so room existence never leaks.
var ErrNoRoom = errors.New("no active room")

// ErrRoomFull is the capacity error for a third invite joiner.
var ErrRoomFull = errors.New("room full")

// Protocol errors. Each is reported back to the sender with its code.
var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotParticipant    = errors.New("not a participant of this room")
	ErrRoomNotActive     = errors.New("room is not active")
	ErrOfferBeforeReady  = errors.New("offer sent before ready")
	ErrNotGameRoom       = errors.New("room has no game")
	ErrWrongSymbol       = errors.New("symbol does not belong to sender")
	ErrAlreadyAssigned   = errors.New("connection is already waiting or in a room")
	ErrDuplicateMessage  = errors.New("duplicate client message id")
	ErrUnknownMessage    = errors.New("unknown client message id")
	ErrOwnMessage        = errors.New("cannot acknowledge own message")
	ErrBadEvent          = errors.New("malformed event")
)

// ErrInvalidTransition is returned by the room and receipt state machines.
// It indicates a bug in the caller, never a client mistake.
var ErrInvalidTransition = errors.New("invalid state transition")

var rejectCodes = []struct {
	err  error
	code string
}{
	{ErrBadEvent, "bad_event"},
	{ErrUnknownConnection, "unknown_connection"},
	{ErrNotParticipant, "not_participant"},
	{ErrRoomNotActive, "room_not_active"},
	{ErrOfferBeforeReady, "offer_before_ready"},
	{ErrNotGameRoom, "not_game_room"},
	{ErrWrongSymbol, "wrong_symbol"},
	{ErrAlreadyAssigned, "already_assigned"},
	{ErrDuplicateMessage, "duplicate_message"},
	{ErrUnknownMessage, "unknown_message"},
	{ErrOwnMessage, "own_message"},
	{game.ErrNotYourTurn, "not_your_turn"},
	{game.ErrCellTaken, "cell_occupied"},
	{game.ErrGameOver, "game_over"},
	{game.ErrInvalidCell, "invalid_cell"},
	{game.ErrInvalidMark, "invalid_symbol"},
	{game.ErrNotFinished, "game_in_progress"},
}

// RejectCode maps an error to the code sent in an "error" event. Unknown
// errors map to "internal".
func RejectCode(err error) string {
	for _, rc := range rejectCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "internal"
}

// RejectError is returned by Hub.Handle when an event was refused and the
// sender was told so.
type RejectError struct {
	Code  string
	Event protocol.EventType
	Err   error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected (%s): %v", e.Event, e.Code, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

// Frame is the error event delivered to the sender.
func (e *RejectError) Frame() protocol.Event {
	return protocol.ErrorEvent(e.Code, e.Err.Error(), e.Event)
}
