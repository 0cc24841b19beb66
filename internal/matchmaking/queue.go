// internal/matchmaking/queue.go
package matchmaking

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/models"
)

// Ticket is a queued request to be paired.
type Ticket struct {
	ConnID     uuid.UUID
	GuestID    uuid.UUID
	Mode       models.Mode
	EnqueuedAt time.Time
	// Seq is the arrival order within the queue and breaks EnqueuedAt ties.
	Seq uint64
}

// Verdict is what a pop predicate decides about one ticket.
type Verdict int

const (
	// Take removes the ticket and returns it.
	Take Verdict = iota
	// Skip leaves the ticket queued and moves on to the next one.
	Skip
	// Discard drops the ticket (its owner is gone) and moves on.
	Discard
)

// Queue is a FIFO waiting list for a single mode. It does no locking of its
// own: the hub serializes every call together with the registry so that a
// pop-and-pair is atomic with respect to connection assignments.
type Queue struct {
	mode    models.Mode
	tickets []Ticket
	seq     uint64
	now     func() time.Time
}

// NewQueue returns an empty queue for mode.
func NewQueue(mode models.Mode) *Queue {
	return &Queue{mode: mode, now: time.Now}
}

// Mode returns the queue's mode.
func (q *Queue) Mode() models.Mode { return q.mode }

// Len returns the number of waiting tickets.
func (q *Queue) Len() int { return len(q.tickets) }

// Push appends a ticket for connID and returns it.
func (q *Queue) Push(connID, guestID uuid.UUID) Ticket {
	q.seq++
	t := Ticket{
		ConnID:     connID,
		GuestID:    guestID,
		Mode:       q.mode,
		EnqueuedAt: q.now(),
		Seq:        q.seq,
	}
	q.tickets = append(q.tickets, t)
	return t
}

// PopEligible walks the queue from the oldest ticket and asks decide about
// each one. Discarded tickets are dropped, skipped tickets keep their place,
// and the first ticket decide takes is removed and returned. The walk is
// bounded by the queue length.
func (q *Queue) PopEligible(decide func(Ticket) Verdict) (Ticket, bool) {
	kept := q.tickets[:0]
	var (
		found  Ticket
		ok     bool
		cursor int
	)
	for cursor = 0; cursor < len(q.tickets); cursor++ {
		t := q.tickets[cursor]
		switch decide(t) {
		case Take:
			found, ok = t, true
		case Skip:
			kept = append(kept, t)
			continue
		case Discard:
			continue
		}
		break
	}
	if ok {
		kept = append(kept, q.tickets[cursor+1:]...)
	}
	// clear the tail so dropped tickets do not linger in the backing array
	for i := len(kept); i < len(q.tickets); i++ {
		q.tickets[i] = Ticket{}
	}
	q.tickets = kept
	return found, ok
}

// Remove drops the ticket owned by connID. It reports whether one was found.
func (q *Queue) Remove(connID uuid.UUID) bool {
	for i, t := range q.tickets {
		if t.ConnID == connID {
			copy(q.tickets[i:], q.tickets[i+1:])
			q.tickets[len(q.tickets)-1] = Ticket{}
			q.tickets = q.tickets[:len(q.tickets)-1]
			return true
		}
	}
	return false
}

// Contains reports whether connID holds a ticket.
func (q *Queue) Contains(connID uuid.UUID) bool {
	for _, t := range q.tickets {
		if t.ConnID == connID {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the waiting tickets, oldest first.
func (q *Queue) Snapshot() []Ticket {
	out := make([]Ticket, len(q.tickets))
	copy(out, q.tickets)
	return out
}
