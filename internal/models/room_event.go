// internal/models/room_event.go
package models

// RoomEventType is a lifecycle step of a room.
type RoomEventType string

const (
	RoomCreated  RoomEventType = "created"
	RoomActive   RoomEventType = "active"
	RoomPeerLeft RoomEventType = "peer_left"
	RoomClosed   RoomEventType = "closed"
)

// RoomEvent is the record published for every room lifecycle step. It never
// carries message content; only ids, timing and the close reason.
type RoomEvent struct {
	RoomCode     string        `json:"room_code"`
	Kind         string        `json:"kind"`
	Mode         Mode          `json:"mode"`
	Event        RoomEventType `json:"event"`
	Reason       string        `json:"reason,omitempty"`
	Participants int           `json:"participants"`
	OpenedAt     int64         `json:"opened_at"` // epoch millis
	Timestamp    int64         `json:"timestamp"` // epoch millis
}
