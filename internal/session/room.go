// internal/session/room.go
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/models"
)

// RoomKind distinguishes rooms created by the matcher from rooms created by a
// shared invite link.
type RoomKind string

const (
	KindMatch  RoomKind = "matchmaking"
	KindInvite RoomKind = "invite"
)

// RoomState is the lifecycle of a room.
type RoomState int

const (
	Forming RoomState = iota
	Active
	Closed
)

func (s RoomState) String() string {
	switch s {
	case Forming:
		return "forming"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("RoomState(%d)", int(s))
}

// roomTransitions lists the allowed next states per kind. Invite rooms fall
// back to Forming when one of the two participants leaves.
var roomTransitions = map[RoomKind]map[RoomState][]RoomState{
	KindMatch: {
		Forming: {Active, Closed},
		Active:  {Closed},
	},
	KindInvite: {
		Forming: {Active, Closed},
		Active:  {Forming, Closed},
	},
}

type member struct {
	conn      *Connection
	symbol    game.Mark
	initiator bool
	readySent bool
	joinedAt  time.Time
}

// Room pairs at most two connections. Code, Kind, Mode and CreatedAt never
// change; everything else is guarded by mu. Membership and state are mutated
// only while the hub lock is also held.
type Room struct {
	Code      string
	Kind      RoomKind
	Mode      models.Mode
	CreatedAt time.Time

	mu           sync.Mutex
	state        RoomState
	members      []*member
	game         *game.State
	receipts     *ReceiptBook
	lastActivity time.Time
}

func newRoom(code string, kind RoomKind, mode models.Mode, receiptCap int, now time.Time) *Room {
	r := &Room{
		Code:         code,
		Kind:         kind,
		Mode:         mode,
		CreatedAt:    now,
		state:        Forming,
		lastActivity: now,
	}
	if mode == models.ModeGame {
		r.game = game.NewState()
	}
	if kind == KindInvite {
		r.receipts = NewReceiptBook(receiptCap)
	}
	return r
}

// State returns the current room state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Participants returns the connection ids in join order.
func (r *Room) Participants() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.conn.ID)
	}
	return ids
}

// Game returns a copy of the game state, or nil for rooms without a game.
func (r *Room) Game() *game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game == nil {
		return nil
	}
	s := r.game.Snapshot()
	return &s
}

// The methods below require r.mu.

func (r *Room) transition(to RoomState) error {
	for _, next := range roomTransitions[r.Kind][r.state] {
		if next == to {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s room %s -> %s", ErrInvalidTransition, r.Kind, r.state, to)
}

func (r *Room) add(c *Connection, symbol game.Mark, now time.Time) *member {
	m := &member{
		conn:      c,
		symbol:    symbol,
		initiator: len(r.members) == 0,
		joinedAt:  now,
	}
	r.members = append(r.members, m)
	return m
}

func (r *Room) remove(connID uuid.UUID) *member {
	for i, m := range r.members {
		if m.conn.ID == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m
		}
	}
	return nil
}

func (r *Room) memberOf(connID uuid.UUID) *member {
	for _, m := range r.members {
		if m.conn.ID == connID {
			return m
		}
	}
	return nil
}

func (r *Room) peerOf(connID uuid.UUID) *member {
	for _, m := range r.members {
		if m.conn.ID != connID {
			return m
		}
	}
	return nil
}

// activePair returns the sender's membership and its peer for an event that
// needs an Active room.
func (r *Room) activePair(connID uuid.UUID) (*member, *member, error) {
	me := r.memberOf(connID)
	if me == nil || r.state == Closed {
		return nil, nil, ErrNoRoom
	}
	if r.state != Active {
		return me, nil, ErrRoomNotActive
	}
	return me, r.peerOf(connID), nil
}
