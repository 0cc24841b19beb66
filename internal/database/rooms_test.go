// internal/database/rooms_test.go
package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRowFor(t *testing.T) {
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := opened.Add(90 * time.Second)
	base := models.RoomEvent{
		RoomCode:     "abc",
		Kind:         "invite",
		Mode:         models.ModeVideo,
		Participants: 2,
		OpenedAt:     opened.UnixMilli(),
		Timestamp:    at.UnixMilli(),
	}

	tests := []struct {
		event     models.RoomEventType
		reason    string
		status    string
		activated bool
		closed    bool
	}{
		{models.RoomCreated, "", "forming", false, false},
		{models.RoomActive, "", "active", true, false},
		{models.RoomPeerLeft, "left", "forming", false, false},
		{models.RoomClosed, "idle", "closed", false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			ev := base
			ev.Event = tt.event
			ev.Reason = tt.reason
			row := sessionRowFor(ev)

			assert.Equal(t, "abc", row.RoomCode)
			assert.Equal(t, opened, row.OpenedAt)
			assert.Equal(t, at, row.EventAt)
			assert.Equal(t, tt.status, row.Status)
			assert.Equal(t, tt.activated, row.ActivatedAt != nil)
			assert.Equal(t, tt.closed, row.ClosedAt != nil)
			if tt.closed {
				require.NotNil(t, row.CloseReason)
				assert.Equal(t, tt.reason, *row.CloseReason)
			} else {
				assert.Nil(t, row.CloseReason)
			}
			assert.Len(t, row.args(), 10)
		})
	}
}

// TestRoomsAgainstPostgres needs a disposable database in TEST_DATABASE_URL.
func TestRoomsAgainstPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	store := NewRooms(pool)
	require.NoError(t, store.Migrate(ctx))

	code := "itest-" + time.Now().Format("150405.000000")
	opened := time.Now().Truncate(time.Millisecond)
	ev := func(kind models.RoomEventType, n int) models.RoomEvent {
		return models.RoomEvent{
			RoomCode: code, Kind: "matchmaking", Mode: models.ModeText, Event: kind,
			Participants: n, OpenedAt: opened.UnixMilli(), Timestamp: time.Now().UnixMilli(),
		}
	}
	require.NoError(t, store.WriteRoomEvents(ctx, []models.RoomEvent{
		ev(models.RoomCreated, 2), ev(models.RoomActive, 2), ev(models.RoomClosed, 1),
	}))

	var status string
	var peak int
	err = pool.QueryRow(ctx,
		`SELECT status, peak_participants FROM room_sessions WHERE room_code = $1`, code,
	).Scan(&status, &peak)
	require.NoError(t, err)
	assert.Equal(t, "closed", status)
	assert.Equal(t, 2, peak)
}
