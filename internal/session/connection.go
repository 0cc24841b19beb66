// internal/session/connection.go
package session

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// AssignmentKind is where a connection currently is.
type AssignmentKind int

const (
	Idle AssignmentKind = iota
	Waiting
	InRoom
)

func (k AssignmentKind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case InRoom:
		return "in_room"
	}
	return "unknown"
}

// Assignment is exactly one of Idle, Waiting(Mode) or InRoom(Room).
type Assignment struct {
	Kind AssignmentKind
	Mode models.Mode
	Room *Room
}

// Connection is one live client endpoint. Its profile and assignment are
// guarded by the hub lock; the outbound channel is drained by the transport's
// write pump.
type Connection struct {
	ID      uuid.UUID
	GuestID uuid.UUID

	// OutChan receives every event destined for this client. It is never
	// closed; the transport stops reading once the connection is gone.
	OutChan chan protocol.Event

	profile    models.Profile
	assignment Assignment
	alive      *atomic.Bool
	logger     *logrus.Logger
}

func newConnection(guestID uuid.UUID, profile models.Profile, outbox int, logger *logrus.Logger) *Connection {
	return &Connection{
		ID:      uuid.New(),
		GuestID: guestID,
		OutChan: make(chan protocol.Event, outbox),
		profile: profile.Clamp(),
		alive:   atomic.NewBool(true),
		logger:  logger,
	}
}

// Alive reports whether the connection is still registered.
func (c *Connection) Alive() bool { return c.alive.Load() }

// Write pushes an event onto OutChan without blocking. Events for a dead
// connection, or for a client whose buffer is full, are dropped.
func (c *Connection) Write(ev protocol.Event) bool {
	if !c.alive.Load() {
		return false
	}
	select {
	case c.OutChan <- ev:
		return true
	default:
		c.logger.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": ev.Type,
		}).Warn("outbox full, dropped event")
		return false
	}
}
