// internal/protocol/events.go
package protocol

// EventType names every event carried over a connection, in either direction.
type EventType string

// Inbound events (client -> server).
const (
	TypeLookingForPartner EventType = "lookingForPartner"
	TypeStopLooking       EventType = "stopLooking"
	TypeJoinRoom          EventType = "joinRoom"
	TypeMessage           EventType = "message"
	TypeFileMessage       EventType = "fileMessage"
	TypeTyping            EventType = "typing"
	TypeReaction          EventType = "reaction"
	TypeGameMove          EventType = "gameMove"
	TypeGameReset         EventType = "gameReset"
	TypeDisconnectByUser  EventType = "disconnectByUser"
	TypeOffer             EventType = "offer"
	TypeAnswer            EventType = "answer"
	TypeCandidate         EventType = "candidate"
	TypeInviteJoin        EventType = "inviteJoin"
	TypeInviteChat        EventType = "inviteChat"
	TypeInviteDelivered   EventType = "inviteDelivered"
	TypeInviteAck         EventType = "inviteAck"
	TypeInviteSeen        EventType = "inviteSeen"
	TypeInviteLeave       EventType = "inviteLeave"
	TypePing              EventType = "ping"
)

// Outbound-only events (server -> client). Relayed events reuse the inbound
// names above.
const (
	TypeWaiting             EventType = "waiting"
	TypePartnerFound        EventType = "partnerFound"
	TypeReady               EventType = "ready"
	TypePartnerTyping       EventType = "partnerTyping"
	TypePartnerDisconnected EventType = "partnerDisconnected"
	TypeInviteWaiting       EventType = "inviteWaiting"
	TypeInvitePeerJoined    EventType = "invitePeerJoined"
	TypeInviteReady         EventType = "inviteReady"
	TypeInviteRoomFull      EventType = "inviteRoomFull"
	TypeInvitePeerLeft      EventType = "invitePeerLeft"
	TypeInviteSent          EventType = "inviteSent"
	TypePong                EventType = "pong"
	TypeError               EventType = "error"
)

// Limits bounds the size of client supplied fields.
type Limits struct {
	MaxTextLen     int
	MaxIDLen       int
	MaxEmojiLen    int
	MaxSignalBytes int
}

// DefaultLimits are used when a zero Limits is passed to Decode.
var DefaultLimits = Limits{
	MaxTextLen:     2000,
	MaxIDLen:       128,
	MaxEmojiLen:    32,
	MaxSignalBytes: 32 * 1024,
}

func (l Limits) withDefaults() Limits {
	if l.MaxTextLen <= 0 {
		l.MaxTextLen = DefaultLimits.MaxTextLen
	}
	if l.MaxIDLen <= 0 {
		l.MaxIDLen = DefaultLimits.MaxIDLen
	}
	if l.MaxEmojiLen <= 0 {
		l.MaxEmojiLen = DefaultLimits.MaxEmojiLen
	}
	if l.MaxSignalBytes <= 0 {
		l.MaxSignalBytes = DefaultLimits.MaxSignalBytes
	}
	return l
}
