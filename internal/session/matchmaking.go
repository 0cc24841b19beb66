// internal/session/matchmaking.go
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/matchmaking"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Enqueue asks for a partner in mode. A connection that is already waiting or
// in a room is told its current status again and nothing else changes.
func (h *Hub) Enqueue(connID uuid.UUID, mode models.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrBadEvent, mode)
	}
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok || !c.Alive() {
		return ErrUnknownConnection
	}
	b.enqueue(c, mode)
	return nil
}

func (b *batch) enqueue(c *Connection, mode models.Mode) {
	h := b.h
	switch c.assignment.Kind {
	case Waiting:
		c.Write(protocol.Event{Type: protocol.TypeWaiting, Mode: c.assignment.Mode})
		return
	case InRoom:
		b.resendStatus(c)
		return
	}

	q := h.queues[mode]
	t, ok := q.PopEligible(func(t matchmaking.Ticket) matchmaking.Verdict {
		if t.ConnID == c.ID {
			// a ticket left behind for the requester itself can never pair
			return matchmaking.Discard
		}
		other, ok := h.conns[t.ConnID]
		if !ok || !other.Alive() || other.assignment.Kind != Waiting || other.assignment.Mode != mode {
			return matchmaking.Discard
		}
		if h.cfg.AvoidSameGuest && c.GuestID != uuid.Nil && t.GuestID == c.GuestID {
			return matchmaking.Skip
		}
		return matchmaking.Take
	})
	if !ok {
		q.Push(c.ID, c.GuestID)
		c.assignment = Assignment{Kind: Waiting, Mode: mode}
		c.Write(protocol.Event{Type: protocol.TypeWaiting, Mode: mode})
		h.logger.WithFields(logrus.Fields{"conn": c.ID, "mode": mode}).Debug("waiting for partner")
		return
	}
	b.openMatch(h.conns[t.ConnID], c, mode)
}

// openMatch pairs the waiting connection with the requester. The waiter plays
// X and is the signaling initiator.
func (b *batch) openMatch(waiter, joiner *Connection, mode models.Mode) {
	h := b.h
	now := h.now()
	r := newRoom(uuid.NewString(), KindMatch, mode, h.cfg.ReceiptCap, now)

	r.mu.Lock()
	defer r.mu.Unlock()

	members := []*member{r.add(waiter, game.X, now), r.add(joiner, game.O, now)}
	if err := r.transition(Active); err != nil {
		h.logger.WithError(err).Error("opening match room")
		return
	}
	h.rooms[r.Code] = r
	for _, m := range members {
		m.conn.assignment = Assignment{Kind: InRoom, Mode: mode, Room: r}
	}
	h.roomsOpened.Inc()
	b.record(r, models.RoomCreated, "", 2)
	b.record(r, models.RoomActive, "", 2)

	for _, m := range members {
		peer := r.peerOf(m.conn.ID).conn.profile
		ev := protocol.Event{
			Type:        protocol.TypePartnerFound,
			RoomCode:    r.Code,
			Mode:        mode,
			PartnerMeta: &peer,
		}
		if r.game != nil {
			ev.Symbol = m.symbol
		}
		m.conn.Write(ev)
	}
	for _, m := range members {
		m.conn.Write(readyEvent(r, m))
		m.readySent = true
	}

	h.logger.WithFields(logrus.Fields{
		"room": r.Code,
		"mode": mode,
		"x":    waiter.ID,
		"o":    joiner.ID,
	}).Info("room opened")
}

func readyEvent(r *Room, m *member) protocol.Event {
	return protocol.Event{
		Type:      protocol.TypeReady,
		RoomCode:  r.Code,
		Initiator: protocol.Bool(m.initiator),
	}
}

func inviteReadyEvent(r *Room, m *member) protocol.Event {
	ev := protocol.Event{
		Type:      protocol.TypeInviteReady,
		RoomID:    r.Code,
		Mode:      r.Mode,
		Initiator: protocol.Bool(m.initiator),
	}
	if r.game != nil {
		ev.Symbol = m.symbol
	}
	return ev
}

// resendStatus repeats the last status event of a connection that is in a
// room. Requires the hub lock.
func (b *batch) resendStatus(c *Connection) {
	r := c.assignment.Room
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberOf(c.ID)
	if m == nil {
		return
	}
	switch {
	case r.Kind == KindInvite && r.state == Forming:
		c.Write(protocol.Event{Type: protocol.TypeInviteWaiting, RoomID: r.Code, Mode: r.Mode})
	case r.Kind == KindInvite && r.state == Active:
		c.Write(inviteReadyEvent(r, m))
	case r.state == Active:
		c.Write(readyEvent(r, m))
	}
}

// CancelWaiting withdraws a pending partner request.
func (h *Hub) CancelWaiting(connID uuid.UUID) error {
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if c.assignment.Kind == Waiting {
		h.queues[c.assignment.Mode].Remove(c.ID)
		c.assignment = Assignment{}
	}
	return nil
}

// Leave ends whatever the connection is doing without closing it. With
// requeue set the connection asks for a new partner in the same mode.
func (h *Hub) Leave(connID uuid.UUID, requeue bool) error {
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	mode := c.assignment.Mode
	if c.assignment.Kind == Waiting && requeue {
		return nil
	}
	was := c.assignment.Kind
	b.release(c, ReasonLeft)
	if requeue && was == InRoom && c.Alive() {
		b.enqueue(c, mode)
	}
	return nil
}

// release returns c to Idle, dropping its ticket or leaving its room.
// Requires the hub lock.
func (b *batch) release(c *Connection, reason string) {
	switch c.assignment.Kind {
	case Waiting:
		b.h.queues[c.assignment.Mode].Remove(c.ID)
		c.assignment = Assignment{}
	case InRoom:
		r := c.assignment.Room
		if r.Kind == KindInvite {
			b.leaveInvite(r, c, reason)
		} else {
			b.closeRoom(r, c, reason)
		}
	}
}

// CloseRoom closes the room with code, telling every participant. It is the
// hook for idle timeouts and moderation in the embedding application.
func (h *Hub) CloseRoom(code, reason string) bool {
	b := h.lock()
	defer b.unlock()

	r, ok := h.rooms[code]
	if !ok {
		r, ok = h.invites[code]
	}
	if !ok {
		return false
	}
	b.closeRoom(r, nil, reason)
	return true
}

// CloseIdleRooms closes every room of an idle-reaped mode (Config.IdleModes)
// without activity for maxIdle and returns how many were closed.
func (h *Hub) CloseIdleRooms(maxIdle time.Duration) int {
	b := h.lock()
	defer b.unlock()

	now := h.now()
	var idle []*Room
	for _, tbl := range []map[string]*Room{h.rooms, h.invites} {
		for _, r := range tbl {
			if !h.cfg.idleReaped(r.Mode) {
				continue
			}
			r.mu.Lock()
			if now.Sub(r.lastActivity) >= maxIdle {
				idle = append(idle, r)
			}
			r.mu.Unlock()
		}
	}
	for _, r := range idle {
		b.closeRoom(r, nil, ReasonIdle)
	}
	return len(idle)
}

// closeRoom removes r for good. Everyone but leaver gets partnerDisconnected.
// Requires the hub lock.
func (b *batch) closeRoom(r *Room, leaver *Connection, reason string) {
	h := b.h
	r.mu.Lock()
	if r.state == Closed {
		r.mu.Unlock()
		return
	}
	if err := r.transition(Closed); err != nil {
		r.mu.Unlock()
		h.logger.WithError(err).Error("closing room")
		return
	}
	members := r.members
	r.members = nil
	r.mu.Unlock()

	if r.Kind == KindInvite {
		delete(h.invites, r.Code)
	} else {
		delete(h.rooms, r.Code)
	}
	h.roomsClosed.Inc()
	b.record(r, models.RoomClosed, reason, len(members))

	var survivors []*Connection
	for _, m := range members {
		m.conn.assignment = Assignment{}
		if m.conn == leaver || !m.conn.Alive() {
			continue
		}
		m.conn.Write(protocol.Event{Type: protocol.TypePartnerDisconnected, RoomCode: r.Code})
		survivors = append(survivors, m.conn)
	}

	h.logger.WithFields(logrus.Fields{
		"room":     r.Code,
		"reason":   reason,
		"duration": h.now().Sub(r.CreatedAt).Round(time.Millisecond),
	}).Info("room closed")

	if h.cfg.AutoRequeueSurvivor && r.Kind == KindMatch && leaver != nil {
		for _, c := range survivors {
			b.enqueue(c, r.Mode)
		}
	}
}
