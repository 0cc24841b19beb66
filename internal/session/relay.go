// internal/session/relay.go
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
)

// scope is what an event resolved to: the sender, its room, and a copy of the
// sender's profile taken under the hub lock.
type scope struct {
	conn    *Connection
	room    *Room
	profile models.Profile
}

// resolve finds the sender's own room and checks it is the one named by the
// event. Only the sender's assignment is consulted, so other rooms are never
// looked up.
func (h *Hub) resolve(connID uuid.UUID, code string) (scope, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return scope{}, ErrUnknownConnection
	}
	if c.assignment.Kind != InRoom {
		return scope{}, ErrNoRoom
	}
	if c.assignment.Room.Code != code {
		return scope{}, fmt.Errorf("%w: %s", ErrNotParticipant, code)
	}
	return scope{conn: c, room: c.assignment.Room, profile: c.profile}, nil
}

// Relay forwards a room scoped chat or game event to the other participant.
func (h *Hub) Relay(connID uuid.UUID, ev protocol.Inbound) error {
	rs, ok := ev.(protocol.RoomScoped)
	if !ok {
		return fmt.Errorf("%w: %s is not relayed", ErrBadEvent, ev.Kind())
	}
	s, err := h.resolve(connID, rs.Room())
	if err != nil {
		return err
	}
	r := s.room

	r.mu.Lock()
	defer r.mu.Unlock()

	me, peer, err := r.activePair(connID)
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case protocol.Message:
		peer.conn.Write(protocol.Event{Type: protocol.TypeMessage, RoomCode: r.Code, ID: e.ID, Text: e.Text})
	case protocol.FileMessage:
		peer.conn.Write(protocol.Event{Type: protocol.TypeFileMessage, RoomCode: r.Code, ID: e.ID, FileMeta: e.FileMeta})
	case protocol.Typing:
		peer.conn.Write(protocol.Event{Type: protocol.TypePartnerTyping, RoomCode: r.Code})
	case protocol.Reaction:
		peer.conn.Write(protocol.Event{Type: protocol.TypeReaction, RoomCode: r.Code, MessageID: e.MessageID, Emoji: e.Emoji})
	case protocol.GameMove:
		if err := r.applyMove(me, e); err != nil {
			return err
		}
	case protocol.GameReset:
		if err := r.resetGame(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s is not relayed", ErrBadEvent, ev.Kind())
	}

	r.lastActivity = h.now()
	h.relayed.Inc()
	return nil
}

// JoinRoom acknowledges a room; ready is sent again while it is Active.
func (h *Hub) JoinRoom(connID uuid.UUID, code string) error {
	s, err := h.resolve(connID, code)
	if err != nil {
		return err
	}
	r := s.room

	r.mu.Lock()
	defer r.mu.Unlock()

	me, _, err := r.activePair(connID)
	if err != nil {
		return err
	}
	if r.Kind == KindInvite {
		me.conn.Write(inviteReadyEvent(r, me))
	} else {
		me.conn.Write(readyEvent(r, me))
	}
	me.readySent = true
	return nil
}

// applyMove validates and applies a move, then sends the authoritative result
// to both participants. Requires r.mu.
func (r *Room) applyMove(me *member, e protocol.GameMove) error {
	if r.game == nil {
		return ErrNotGameRoom
	}
	if e.Symbol != me.symbol {
		return fmt.Errorf("%w: %s plays %s", ErrWrongSymbol, me.conn.ID, me.symbol)
	}
	if err := r.game.Apply(me.symbol, e.Cell()); err != nil {
		return err
	}
	board := r.game.Board
	out := protocol.Event{
		Type:      protocol.TypeGameMove,
		RoomCode:  r.Code,
		CellIndex: protocol.Int(e.Cell()),
		Symbol:    me.symbol,
		NewBoard:  &board,
		NextTurn:  r.game.Turn,
		Winner:    r.game.Winner,
		Draw:      r.game.Draw,
	}
	r.broadcast(out)
	return nil
}

// resetGame starts a new round once the current one has a result.
// Requires r.mu.
func (r *Room) resetGame() error {
	if r.game == nil {
		return ErrNotGameRoom
	}
	if err := r.game.Reset(); err != nil {
		return err
	}
	board := r.game.Board
	r.broadcast(protocol.Event{
		Type:     protocol.TypeGameReset,
		RoomCode: r.Code,
		NewBoard: &board,
		NextTurn: r.game.Turn,
	})
	return nil
}

func (r *Room) broadcast(ev protocol.Event) {
	for _, m := range r.members {
		m.conn.Write(ev)
	}
}
