// internal/session/receipt_test.go
package session

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptOnlyMovesForward(t *testing.T) {
	r := &Receipt{ClientID: "c1", State: ReceiptSent}

	assert.True(t, r.Advance(ReceiptDelivered))
	assert.False(t, r.Advance(ReceiptDelivered))
	assert.True(t, r.Advance(ReceiptSeen))
	assert.False(t, r.Advance(ReceiptAcknowledged))
	assert.False(t, r.Advance(ReceiptSeen))
	assert.Equal(t, ReceiptSeen, r.State)
}

func TestReceiptStateFor(t *testing.T) {
	tests := map[protocol.EventType]ReceiptState{
		protocol.TypeInviteDelivered: ReceiptDelivered,
		protocol.TypeInviteAck:       ReceiptAcknowledged,
		protocol.TypeInviteSeen:      ReceiptSeen,
	}
	for typ, want := range tests {
		got, ok := ReceiptStateFor(typ)
		require.True(t, ok, typ)
		assert.Equal(t, want, got)
	}
	_, ok := ReceiptStateFor(protocol.TypeMessage)
	assert.False(t, ok)
}

func TestReceiptBookEvictsOldest(t *testing.T) {
	b := NewReceiptBook(3)
	sender := uuid.New()
	for i := 0; i < 4; i++ {
		_, err := b.Add(fmt.Sprintf("c%d", i), sender)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, b.Len())
	_, ok := b.Get("c0")
	assert.False(t, ok)
	_, ok = b.Get("c3")
	assert.True(t, ok)

	_, err := b.Add("c3", sender)
	assert.ErrorIs(t, err, ErrDuplicateMessage)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestRoomTransitions(t *testing.T) {
	match := &Room{Kind: KindMatch}
	require.NoError(t, match.transition(Active))
	assert.ErrorIs(t, match.transition(Forming), ErrInvalidTransition)
	assert.Equal(t, Active, match.state, "rejected transitions are not applied")
	require.NoError(t, match.transition(Closed))
	assert.ErrorIs(t, match.transition(Active), ErrInvalidTransition)

	invite := &Room{Kind: KindInvite}
	require.NoError(t, invite.transition(Active))
	require.NoError(t, invite.transition(Forming))
	require.NoError(t, invite.transition(Closed))
}
