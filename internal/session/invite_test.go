// internal/session/invite_test.go
package session

import (
	"testing"

	"github.com/jason-s-yu/pairline/internal/game"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinInvite(t *testing.T, h *Hub, c *Connection, roomID string) error {
	t.Helper()
	return h.Handle(c.ID, protocol.InviteJoin{RoomID: roomID, Mode: models.ModeText, Username: c.profile.Name})
}

// openInvite puts a and b into invite room roomID and clears their outboxes.
func openInvite(t *testing.T, h *Hub, roomID string) (a, b *Connection) {
	t.Helper()
	a = register(h, "alice")
	b = register(h, "bob")
	require.NoError(t, joinInvite(t, h, a, roomID))
	require.NoError(t, joinInvite(t, h, b, roomID))
	drain(a)
	drain(b)
	return a, b
}

func TestInviteJoinLifecycle(t *testing.T) {
	h, sink := newTestHub(t, Config{})
	a := register(h, "alice")
	b := register(h, "bob")
	c := register(h, "carol")

	require.NoError(t, joinInvite(t, h, a, "abc"))
	w := only(t, a, protocol.TypeInviteWaiting)
	assert.Equal(t, "abc", w.RoomID)

	require.NoError(t, joinInvite(t, h, b, "abc"))
	evA, evB := drain(a), drain(b)
	require.Equal(t, []protocol.EventType{protocol.TypeInviteReady, protocol.TypeInvitePeerJoined}, types(evA))
	require.Equal(t, []protocol.EventType{protocol.TypeInviteReady, protocol.TypeInvitePeerJoined}, types(evB))
	assert.Equal(t, models.ModeText, evA[0].Mode)
	assert.True(t, *evA[0].Initiator, "creator initiates")
	assert.False(t, *evB[0].Initiator)
	assert.Equal(t, "bob", evA[1].Username)
	assert.Equal(t, "alice", evB[1].Username)

	err := joinInvite(t, h, c, "abc")
	assert.ErrorIs(t, err, ErrRoomFull)
	full := only(t, c, protocol.TypeInviteRoomFull)
	assert.Equal(t, "abc", full.RoomID)
	assert.Empty(t, drain(a), "existing participants are unaffected")
	assert.Empty(t, drain(b))

	r, ok := h.Room("abc")
	require.True(t, ok)
	assert.Equal(t, KindInvite, r.Kind)
	assert.Equal(t, Active, r.State())
	assert.Equal(t, []models.RoomEventType{models.RoomCreated, models.RoomActive}, sink.kinds())
}

func TestInviteRejoinIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a := register(h, "alice")

	require.NoError(t, joinInvite(t, h, a, "room-1"))
	require.NoError(t, joinInvite(t, h, a, "room-1"))
	assert.Equal(t, []protocol.EventType{protocol.TypeInviteWaiting, protocol.TypeInviteWaiting}, types(drain(a)))

	r, _ := h.Room("room-1")
	assert.Len(t, r.Participants(), 1)
}

func TestInviteJoinRequiresIdle(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a := register(h, "alice")
	require.NoError(t, h.Enqueue(a.ID, models.ModeText))
	drain(a)

	err := joinInvite(t, h, a, "room-1")
	require.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.Equal(t, "already_assigned", only(t, a, protocol.TypeError).Code)
	_, ok := h.Room("room-1")
	assert.False(t, ok)
}

func TestInviteLeaveKeepsRoomJoinable(t *testing.T) {
	h, sink := newTestHub(t, Config{})
	a, b := openInvite(t, h, "link")

	require.NoError(t, h.Handle(a.ID, protocol.InviteLeave{RoomID: "link"}))
	left := only(t, b, protocol.TypeInvitePeerLeft)
	assert.Equal(t, "link", left.RoomID)
	assert.Empty(t, drain(a))

	r, ok := h.Room("link")
	require.True(t, ok)
	assert.Equal(t, Forming, r.State())

	c := register(h, "carol")
	require.NoError(t, joinInvite(t, h, c, "link"))
	require.Len(t, drain(c), 2)
	evB := drain(b)
	require.Len(t, evB, 2)
	assert.True(t, *evB[0].Initiator, "the remaining participant becomes the creator")
	assert.Equal(t, "carol", evB[1].Username)

	h.Unregister(b.ID)
	assert.Equal(t, []protocol.EventType{protocol.TypePartnerDisconnected, protocol.TypeInvitePeerLeft}, types(drain(c)))
	require.NoError(t, h.Handle(c.ID, protocol.InviteLeave{RoomID: "link"}))
	_, ok = h.Room("link")
	assert.False(t, ok, "empty invite room is deleted")

	kinds := sink.kinds()
	assert.Equal(t, models.RoomClosed, kinds[len(kinds)-1])
}

func TestInvitePeerDisconnect(t *testing.T) {
	h, sink := newTestHub(t, Config{})
	a, b := openInvite(t, h, "abc")

	h.Unregister(a.ID)
	evB := drain(b)
	require.Equal(t, []protocol.EventType{protocol.TypePartnerDisconnected, protocol.TypeInvitePeerLeft}, types(evB))
	assert.Equal(t, "abc", evB[0].RoomCode)
	assert.Equal(t, "abc", evB[1].RoomID)

	r, ok := h.Room("abc")
	require.True(t, ok, "the link stays joinable")
	assert.Equal(t, Forming, r.State())
	asg, err := h.AssignmentOf(b.ID)
	require.NoError(t, err)
	assert.Equal(t, InRoom, asg.Kind)

	kinds := sink.kinds()
	assert.Equal(t, models.RoomPeerLeft, kinds[len(kinds)-1])
}

func TestInviteLeaveWrongRoom(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a, _ := openInvite(t, h, "mine")

	err := h.Handle(a.ID, protocol.InviteLeave{RoomID: "theirs"})
	require.ErrorIs(t, err, ErrNotParticipant)
	only(t, a, protocol.TypeError)

	idle := register(h, "idle")
	err = h.Handle(idle.ID, protocol.InviteLeave{RoomID: "mine"})
	assert.ErrorIs(t, err, ErrNoRoom)
	assert.Empty(t, drain(idle))
}

func TestInviteRoomRelaysRoomEvents(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a, b := openInvite(t, h, "chat-room")

	require.NoError(t, h.Handle(a.ID, protocol.Typing{RoomCode: "chat-room"}))
	only(t, b, protocol.TypePartnerTyping)
}

func TestInviteGameRoom(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a := register(h, "alice")
	b := register(h, "bob")
	require.NoError(t, h.Handle(a.ID, protocol.InviteJoin{RoomID: "ttt", Mode: models.ModeGame}))
	require.NoError(t, h.Handle(b.ID, protocol.InviteJoin{RoomID: "ttt", Mode: models.ModeText}))
	drain(a)

	evB := drain(b)
	assert.Equal(t, models.ModeGame, evB[0].Mode, "the creator picks the mode")
	assert.Equal(t, game.O, evB[0].Symbol)

	require.NoError(t, h.Handle(a.ID, protocol.GameMove{RoomCode: "ttt", CellIndex: protocol.Int(4), Symbol: game.X}))
	only(t, b, protocol.TypeGameMove)
}

func TestInviteChatAndReceipts(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a, b := openInvite(t, h, "r1")

	require.NoError(t, h.Handle(a.ID, protocol.InviteChat{RoomID: "r1", Text: "hey", ClientID: "c1"}))
	chat := only(t, b, protocol.TypeInviteChat)
	assert.Equal(t, "hey", chat.Text)
	assert.Equal(t, "c1", chat.ClientID)
	assert.Equal(t, "alice", chat.Username)
	sent := only(t, a, protocol.TypeInviteSent)
	assert.Equal(t, "c1", sent.ClientID)

	err := h.Handle(a.ID, protocol.InviteChat{RoomID: "r1", Text: "again", ClientID: "c1"})
	require.ErrorIs(t, err, ErrDuplicateMessage)
	assert.Equal(t, "duplicate_message", only(t, a, protocol.TypeError).Code)
	assert.Empty(t, drain(b))

	receipt := func(c *Connection, typ protocol.EventType, id string) error {
		return h.Handle(c.ID, protocol.InviteReceipt{Type: typ, RoomID: "r1", ClientID: id})
	}

	require.NoError(t, receipt(b, protocol.TypeInviteDelivered, "c1"))
	d := only(t, a, protocol.TypeInviteDelivered)
	assert.Equal(t, "c1", d.ClientID)
	assert.Empty(t, drain(b))

	// skipping acknowledged is allowed
	require.NoError(t, receipt(b, protocol.TypeInviteSeen, "c1"))
	only(t, a, protocol.TypeInviteSeen)

	// repeats and regressions are no-ops
	require.NoError(t, receipt(b, protocol.TypeInviteSeen, "c1"))
	require.NoError(t, receipt(b, protocol.TypeInviteAck, "c1"))
	assert.Empty(t, drain(a))
	assert.Empty(t, drain(b))

	require.ErrorIs(t, receipt(a, protocol.TypeInviteSeen, "c1"), ErrOwnMessage)
	assert.Equal(t, "own_message", only(t, a, protocol.TypeError).Code)

	require.ErrorIs(t, receipt(b, protocol.TypeInviteSeen, "nope"), ErrUnknownMessage)
	assert.Equal(t, "unknown_message", only(t, b, protocol.TypeError).Code)
}

func TestInviteChatNeedsPeer(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a := register(h, "alice")
	require.NoError(t, joinInvite(t, h, a, "solo"))
	drain(a)

	err := h.Handle(a.ID, protocol.InviteChat{RoomID: "solo", Text: "anyone?", ClientID: "c1"})
	require.ErrorIs(t, err, ErrRoomNotActive)
	assert.Equal(t, "room_not_active", only(t, a, protocol.TypeError).Code)
}

func TestInviteChatInMatchRoom(t *testing.T) {
	h, _ := newTestHub(t, Config{})
	a, b, code := pair(t, h, models.ModeText)

	err := h.Handle(a.ID, protocol.InviteChat{RoomID: code, Text: "hi", ClientID: "c1"})
	require.ErrorIs(t, err, ErrNotParticipant)
	only(t, a, protocol.TypeError)
	assert.Empty(t, drain(b))
}
