// internal/database/rooms.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pairline/internal/models"
)

// Schema creates the room history table. Rows hold timing and counts only;
// message content is never stored.
const Schema = `
CREATE TABLE IF NOT EXISTS room_sessions (
	room_code         TEXT        NOT NULL,
	opened_at         TIMESTAMPTZ NOT NULL,
	kind              TEXT        NOT NULL,
	mode              TEXT        NOT NULL,
	status            TEXT        NOT NULL,
	activated_at      TIMESTAMPTZ,
	closed_at         TIMESTAMPTZ,
	close_reason      TEXT,
	peak_participants INT         NOT NULL DEFAULT 0,
	last_event_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_code, opened_at)
)`

const upsertRoomSession = `
	INSERT INTO room_sessions (
		room_code, opened_at, kind, mode, status,
		activated_at, closed_at, close_reason, peak_participants, last_event_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (room_code, opened_at) DO UPDATE SET
		status            = EXCLUDED.status,
		activated_at      = COALESCE(room_sessions.activated_at, EXCLUDED.activated_at),
		closed_at         = COALESCE(EXCLUDED.closed_at, room_sessions.closed_at),
		close_reason      = COALESCE(EXCLUDED.close_reason, room_sessions.close_reason),
		peak_participants = GREATEST(room_sessions.peak_participants, EXCLUDED.peak_participants),
		last_event_at     = GREATEST(room_sessions.last_event_at, EXCLUDED.last_event_at)
`

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Rooms writes room lifecycle records.
type Rooms struct {
	db TxBeginner
}

// NewRooms returns a store backed by db.
func NewRooms(db TxBeginner) *Rooms {
	return &Rooms{db: db}
}

// Migrate creates the schema if needed.
func (s *Rooms) Migrate(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, Schema)
		return err
	})
}

// WriteRoomEvents applies a batch of records in one transaction.
func (s *Rooms) WriteRoomEvents(ctx context.Context, events []models.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			row := sessionRowFor(ev)
			if _, err := tx.Exec(ctx, upsertRoomSession, row.args()...); err != nil {
				return fmt.Errorf("upsert room %s: %w", ev.RoomCode, err)
			}
		}
		return nil
	})
}

// sessionRow is one room_sessions row as derived from a single record.
type sessionRow struct {
	RoomCode     string
	OpenedAt     time.Time
	Kind         string
	Mode         string
	Status       string
	ActivatedAt  *time.Time
	ClosedAt     *time.Time
	CloseReason  *string
	Participants int
	EventAt      time.Time
}

func sessionRowFor(ev models.RoomEvent) sessionRow {
	at := time.UnixMilli(ev.Timestamp).UTC()
	row := sessionRow{
		RoomCode:     ev.RoomCode,
		OpenedAt:     time.UnixMilli(ev.OpenedAt).UTC(),
		Kind:         ev.Kind,
		Mode:         string(ev.Mode),
		Participants: ev.Participants,
		EventAt:      at,
	}
	switch ev.Event {
	case models.RoomCreated, models.RoomPeerLeft:
		row.Status = "forming"
	case models.RoomActive:
		row.Status = "active"
		row.ActivatedAt = &at
	case models.RoomClosed:
		row.Status = "closed"
		row.ClosedAt = &at
		if ev.Reason != "" {
			reason := ev.Reason
			row.CloseReason = &reason
		}
	default:
		row.Status = string(ev.Event)
	}
	return row
}

func (r sessionRow) args() []any {
	return []any{
		r.RoomCode, r.OpenedAt, r.Kind, r.Mode, r.Status,
		r.ActivatedAt, r.ClosedAt, r.CloseReason, r.Participants, r.EventAt,
	}
}
