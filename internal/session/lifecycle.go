// internal/session/lifecycle.go
package session

import "github.com/jason-s-yu/pairline/internal/models"

// Sink receives room lifecycle records. Publish is called after the hub lock
// has been released and must not block.
type Sink interface {
	Publish(models.RoomEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.RoomEvent)

func (f SinkFunc) Publish(ev models.RoomEvent) { f(ev) }

var discardSink = SinkFunc(func(models.RoomEvent) {})

// batch collects the lifecycle records produced while the hub lock is held so
// they can be published once it is released.
type batch struct {
	h       *Hub
	records []models.RoomEvent
}

func (h *Hub) lock() *batch {
	h.mu.Lock()
	return &batch{h: h}
}

func (b *batch) unlock() {
	b.h.mu.Unlock()
	for _, rec := range b.records {
		b.h.sink.Publish(rec)
	}
}

func (b *batch) record(r *Room, kind models.RoomEventType, reason string, participants int) {
	now := b.h.now()
	b.records = append(b.records, models.RoomEvent{
		RoomCode:     r.Code,
		Kind:         string(r.Kind),
		Mode:         r.Mode,
		Event:        kind,
		Reason:       reason,
		Participants: participants,
		OpenedAt:     r.CreatedAt.UnixMilli(),
		Timestamp:    now.UnixMilli(),
	})
}

// Close reasons carried by lifecycle records.
const (
	ReasonLeft       = "left"
	ReasonDisconnect = "disconnect"
	ReasonIdle       = "idle"
	ReasonClosed     = "closed"
)
