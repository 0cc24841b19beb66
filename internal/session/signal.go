// internal/session/signal.go
package session

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/protocol"
)

// Signal forwards an offer, answer or candidate to the peer unchanged. An
// offer is only accepted after the sender has been told the room is ready.
func (h *Hub) Signal(connID uuid.UUID, ev protocol.Signal) error {
	s, err := h.resolve(connID, ev.RoomCode)
	if err != nil {
		return err
	}
	r := s.room

	r.mu.Lock()
	defer r.mu.Unlock()

	me := r.memberOf(connID)
	if me == nil || r.state == Closed {
		return ErrNoRoom
	}
	if ev.Type == protocol.TypeOffer && !me.readySent {
		return ErrOfferBeforeReady
	}
	_, peer, err := r.activePair(connID)
	if err != nil {
		return err
	}

	out := protocol.Event{Type: ev.Type, RoomCode: r.Code}
	if ev.Type == protocol.TypeCandidate {
		out.Candidate = ev.Cand
	} else {
		out.SDP = ev.SDP
	}
	peer.conn.Write(out)

	r.lastActivity = h.now()
	h.relayed.Inc()
	return nil
}
