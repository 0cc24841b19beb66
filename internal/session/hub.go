// internal/session/hub.go
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/matchmaking"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Config tunes the hub. The zero value is usable.
type Config struct {
	// AutoRequeueSurvivor puts the remaining participant of a closed
	// matchmaking room straight back into the queue for the same mode.
	AutoRequeueSurvivor bool
	// AvoidSameGuest keeps two tabs of the same browser from being paired.
	AvoidSameGuest bool
	// ReceiptCap bounds the receipt book of each invite room.
	ReceiptCap int
	// OutboxSize is the buffer of each connection's OutChan.
	OutboxSize int
	// IdleModes lists the modes whose rooms CloseIdleRooms may close. Empty
	// means game rooms only; video and text rooms stay open until a member
	// leaves.
	IdleModes []models.Mode
	Limits    protocol.Limits
}

// DefaultOutboxSize is used when Config.OutboxSize is not set.
const DefaultOutboxSize = 64

func (c Config) idleReaped(m models.Mode) bool {
	for _, idle := range c.IdleModes {
		if idle == m {
			return true
		}
	}
	return false
}

func (c Config) withDefaults() Config {
	if c.ReceiptCap <= 0 {
		c.ReceiptCap = DefaultReceiptCap
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = DefaultOutboxSize
	}
	if len(c.IdleModes) == 0 {
		c.IdleModes = []models.Mode{models.ModeGame}
	}
	return c
}

// Hub owns every connection, waiting queue and room. mu orders all
// assignment changes; each room's own lock orders the events inside it and is
// always taken after mu.
type Hub struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*Connection
	queues  map[models.Mode]*matchmaking.Queue
	rooms   map[string]*Room
	invites map[string]*Room

	cfg    Config
	sink   Sink
	logger *logrus.Logger
	now    func() time.Time

	roomsOpened atomic.Uint64
	roomsClosed atomic.Uint64
	relayed     atomic.Uint64
	rejected    atomic.Uint64
}

// NewHub returns an empty hub. A nil sink discards lifecycle records.
func NewHub(cfg Config, sink Sink, logger *logrus.Logger) *Hub {
	if sink == nil {
		sink = discardSink
	}
	h := &Hub{
		conns:   make(map[uuid.UUID]*Connection),
		queues:  make(map[models.Mode]*matchmaking.Queue, len(models.Modes)),
		rooms:   make(map[string]*Room),
		invites: make(map[string]*Room),
		cfg:     cfg.withDefaults(),
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
	for _, m := range models.Modes {
		h.queues[m] = matchmaking.NewQueue(m)
	}
	return h
}

// Register adds a new Idle connection.
func (h *Hub) Register(profile models.Profile, guestID uuid.UUID) *Connection {
	c := newConnection(guestID, profile, h.cfg.OutboxSize, h.logger)

	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{"conn": c.ID, "guest": guestID}).Debug("connection registered")
	return c
}

// Unregister removes a connection. Its ticket is dropped, its room is closed
// (or, for an invite room, left) and the peer is told once.
func (h *Hub) Unregister(connID uuid.UUID) {
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	c.alive.Store(false)
	b.release(c, ReasonDisconnect)
	delete(h.conns, connID)

	h.logger.WithField("conn", connID).Debug("connection unregistered")
}

// Lookup returns the live connection with id.
func (h *Hub) Lookup(id uuid.UUID) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// AssignmentOf returns a copy of the connection's current assignment.
func (h *Hub) AssignmentOf(id uuid.UUID) (Assignment, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	return c.assignment, nil
}

// Room returns the live room with code, matchmaking rooms first.
func (h *Hub) Room(code string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[code]; ok {
		return r, true
	}
	r, ok := h.invites[code]
	return r, ok
}

// Stats is a point in time view of the hub.
type Stats struct {
	Connections int                 `json:"connections"`
	Waiting     map[models.Mode]int `json:"waiting"`
	Rooms       map[RoomKind]int    `json:"rooms"`
	RoomsOpened uint64              `json:"rooms_opened"`
	RoomsClosed uint64              `json:"rooms_closed"`
	Relayed     uint64              `json:"relayed"`
	Rejected    uint64              `json:"rejected"`
}

// Stats reports connection, queue and room counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Connections: len(h.conns),
		Waiting:     make(map[models.Mode]int, len(h.queues)),
		Rooms: map[RoomKind]int{
			KindMatch:  len(h.rooms),
			KindInvite: len(h.invites),
		},
		RoomsOpened: h.roomsOpened.Load(),
		RoomsClosed: h.roomsClosed.Load(),
		Relayed:     h.relayed.Load(),
		Rejected:    h.rejected.Load(),
	}
	for _, q := range h.queues {
		s.Waiting[q.Mode()] = q.Len()
	}
	return s
}

// HandleFrame decodes one raw frame from connID and handles it. Frames that
// fail to decode are answered with a bad_event error.
func (h *Hub) HandleFrame(connID uuid.UUID, data []byte) error {
	ev, err := protocol.Decode(data, h.cfg.Limits)
	if err != nil {
		var kind protocol.EventType
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			kind = de.Type
		}
		return h.reject(connID, kind, fmt.Errorf("%w: %v", ErrBadEvent, err))
	}
	return h.Handle(connID, ev)
}

// Handle dispatches a decoded event. Refusals the sender must hear about are
// sent back as an error event and returned as *RejectError; silent drops
// return the underlying error.
func (h *Hub) Handle(connID uuid.UUID, ev protocol.Inbound) error {
	var err error
	switch e := ev.(type) {
	case protocol.LookingForPartner:
		err = h.Enqueue(connID, e.Mode)
	case protocol.StopLooking:
		err = h.CancelWaiting(connID)
	case protocol.JoinRoom:
		err = h.JoinRoom(connID, e.RoomCode)
	case protocol.DisconnectByUser:
		err = h.Leave(connID, e.Requeue)
	case protocol.Signal:
		err = h.Signal(connID, e)
	case protocol.InviteJoin:
		err = h.InviteJoin(connID, e)
	case protocol.InviteChat:
		err = h.InviteChat(connID, e)
	case protocol.InviteReceipt:
		err = h.InviteReceipt(connID, e)
	case protocol.InviteLeave:
		err = h.InviteLeave(connID, e.RoomID)
	case protocol.Ping:
		err = h.Ping(connID)
	default:
		err = h.Relay(connID, ev)
	}
	if err != nil {
		return h.reject(connID, ev.Kind(), err)
	}
	return nil
}

// Ping answers with pong. A ping from a room member counts as room activity.
func (h *Hub) Ping(connID uuid.UUID) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if r := c.assignment.Room; c.assignment.Kind == InRoom && r != nil {
		r.mu.Lock()
		r.lastActivity = h.now()
		r.mu.Unlock()
	}
	c.Write(protocol.Event{Type: protocol.TypePong})
	return nil
}

func (h *Hub) reject(connID uuid.UUID, kind protocol.EventType, err error) error {
	log := h.logger.WithFields(logrus.Fields{"conn": connID, "event": kind})
	switch {
	case errors.Is(err, ErrNoRoom):
		log.WithError(err).Debug("dropped event")
		return err
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrUnknownConnection):
		// room full was already answered with inviteRoomFull
		log.WithError(err).Debug("event refused")
		return err
	}

	h.rejected.Inc()
	rej := &RejectError{Code: RejectCode(err), Event: kind, Err: err}
	if c, ok := h.Lookup(connID); ok {
		c.Write(rej.Frame())
	}
	log.WithError(err).Debug("rejected event")
	return rej
}
