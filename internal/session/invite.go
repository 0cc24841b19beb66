// internal/session/invite.go
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/sirupsen/logrus"
)

// InviteJoin joins the invite room named by a shared link, creating it on
// first use. The room holds two participants at most; the creator plays X.
func (h *Hub) InviteJoin(connID uuid.UUID, ev protocol.InviteJoin) error {
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok || !c.Alive() {
		return ErrUnknownConnection
	}
	r, exists := h.invites[ev.RoomID]
	if exists && c.assignment.Kind == InRoom && c.assignment.Room == r {
		b.resendStatus(c)
		return nil
	}
	if c.assignment.Kind != Idle {
		return ErrAlreadyAssigned
	}
	if ev.Username != "" {
		c.profile = models.Profile{Name: ev.Username, Avatar: c.profile.Avatar}.Clamp()
	}

	now := h.now()
	log := h.logger.WithFields(logrus.Fields{"room": ev.RoomID, "conn": c.ID})

	if !exists {
		r = newRoom(ev.RoomID, KindInvite, ev.Mode, h.cfg.ReceiptCap, now)
		r.mu.Lock()
		r.add(c, game.X, now)
		r.mu.Unlock()

		h.invites[r.Code] = r
		c.assignment = Assignment{Kind: InRoom, Mode: r.Mode, Room: r}
		h.roomsOpened.Inc()
		b.record(r, models.RoomCreated, "", 1)
		c.Write(protocol.Event{Type: protocol.TypeInviteWaiting, RoomID: r.Code, Mode: r.Mode})
		log.Debug("invite room created")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= 2 {
		c.Write(protocol.Event{Type: protocol.TypeInviteRoomFull, RoomID: r.Code})
		return ErrRoomFull
	}
	creator := r.members[0]
	joiner := r.add(c, creator.symbol.Opponent(), now)
	if err := r.transition(Active); err != nil {
		r.remove(c.ID)
		return err
	}
	c.assignment = Assignment{Kind: InRoom, Mode: r.Mode, Room: r}
	r.lastActivity = now
	b.record(r, models.RoomActive, "", 2)

	for _, m := range r.members {
		m.conn.Write(inviteReadyEvent(r, m))
		m.readySent = true
	}
	creator.conn.Write(protocol.Event{
		Type:     protocol.TypeInvitePeerJoined,
		RoomID:   r.Code,
		Username: joiner.conn.profile.DisplayName(),
	})
	joiner.conn.Write(protocol.Event{
		Type:     protocol.TypeInvitePeerJoined,
		RoomID:   r.Code,
		Username: creator.conn.profile.DisplayName(),
	})
	log.Info("invite room ready")
	return nil
}

// InviteLeave leaves the invite room. The remaining participant keeps the
// link and waits for someone new.
func (h *Hub) InviteLeave(connID uuid.UUID, roomID string) error {
	b := h.lock()
	defer b.unlock()

	c, ok := h.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if c.assignment.Kind != InRoom || c.assignment.Room.Kind != KindInvite {
		return ErrNoRoom
	}
	if c.assignment.Room.Code != roomID {
		return fmt.Errorf("%w: %s", ErrNotParticipant, roomID)
	}
	b.leaveInvite(c.assignment.Room, c, ReasonLeft)
	return nil
}

// leaveInvite removes c from r. An emptied room is deleted; otherwise it goes
// back to Forming with a fresh game and receipt book, and the survivor hears
// invitePeerLeft, preceded by partnerDisconnected when c dropped off. Requires
// the hub lock.
func (b *batch) leaveInvite(r *Room, c *Connection, reason string) {
	h := b.h
	r.mu.Lock()
	defer r.mu.Unlock()

	c.assignment = Assignment{}
	if r.remove(c.ID) == nil {
		return
	}

	if len(r.members) == 0 {
		if err := r.transition(Closed); err != nil {
			h.logger.WithError(err).Error("closing invite room")
		}
		delete(h.invites, r.Code)
		h.roomsClosed.Inc()
		b.record(r, models.RoomClosed, reason, 0)
		return
	}

	survivor := r.members[0]
	survivor.symbol = game.X
	survivor.initiator = true
	survivor.readySent = false
	if r.state == Active {
		if err := r.transition(Forming); err != nil {
			h.logger.WithError(err).Error("reopening invite room")
		}
	}
	r.receipts.Reset()
	if r.game != nil {
		r.game = game.NewState()
	}
	b.record(r, models.RoomPeerLeft, reason, 1)
	if reason == ReasonDisconnect {
		survivor.conn.Write(protocol.Event{Type: protocol.TypePartnerDisconnected, RoomCode: r.Code})
	}
	survivor.conn.Write(protocol.Event{Type: protocol.TypeInvitePeerLeft, RoomID: r.Code})
}

// InviteChat relays a text message to the peer and starts its receipt.
func (h *Hub) InviteChat(connID uuid.UUID, ev protocol.InviteChat) error {
	s, err := h.resolve(connID, ev.RoomID)
	if err != nil {
		return err
	}
	r := s.room
	if r.Kind != KindInvite {
		return fmt.Errorf("%w: %s is not an invite room", ErrNotParticipant, ev.RoomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	me, peer, err := r.activePair(connID)
	if err != nil {
		return err
	}
	if _, err := r.receipts.Add(ev.ClientID, connID); err != nil {
		return err
	}
	peer.conn.Write(protocol.Event{
		Type:     protocol.TypeInviteChat,
		RoomID:   r.Code,
		Text:     ev.Text,
		ClientID: ev.ClientID,
		Username: s.profile.DisplayName(),
	})
	me.conn.Write(protocol.Event{Type: protocol.TypeInviteSent, RoomID: r.Code, ClientID: ev.ClientID})

	r.lastActivity = h.now()
	h.relayed.Inc()
	return nil
}

// InviteReceipt advances a message receipt on behalf of its receiver and
// tells the sender. Repeats and regressions change nothing.
func (h *Hub) InviteReceipt(connID uuid.UUID, ev protocol.InviteReceipt) error {
	to, ok := ReceiptStateFor(ev.Type)
	if !ok {
		return fmt.Errorf("%w: %s is not a receipt", ErrBadEvent, ev.Type)
	}
	s, err := h.resolve(connID, ev.RoomID)
	if err != nil {
		return err
	}
	r := s.room
	if r.Kind != KindInvite {
		return fmt.Errorf("%w: %s is not an invite room", ErrNotParticipant, ev.RoomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, peer, err := r.activePair(connID)
	if err != nil {
		return err
	}
	rec, ok := r.receipts.Get(ev.ClientID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, ev.ClientID)
	}
	if rec.Sender == connID {
		return ErrOwnMessage
	}
	if !rec.Advance(to) {
		return nil
	}
	if peer.conn.ID == rec.Sender {
		peer.conn.Write(protocol.Event{Type: ev.Type, RoomID: r.Code, ClientID: ev.ClientID})
	}
	return nil
}
