// internal/session/receipt.go
package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/protocol"
)

// ReceiptState is the delivery progress of one invite chat message. States
// only move forward.
type ReceiptState int

const (
	ReceiptSent ReceiptState = iota + 1
	ReceiptDelivered
	ReceiptAcknowledged
	ReceiptSeen
)

func (s ReceiptState) String() string {
	switch s {
	case ReceiptSent:
		return "sent"
	case ReceiptDelivered:
		return "delivered"
	case ReceiptAcknowledged:
		return "acknowledged"
	case ReceiptSeen:
		return "seen"
	}
	return fmt.Sprintf("ReceiptState(%d)", int(s))
}

// ReceiptStateFor maps a receipt event to the state it requests.
func ReceiptStateFor(t protocol.EventType) (ReceiptState, bool) {
	switch t {
	case protocol.TypeInviteDelivered:
		return ReceiptDelivered, true
	case protocol.TypeInviteAck:
		return ReceiptAcknowledged, true
	case protocol.TypeInviteSeen:
		return ReceiptSeen, true
	}
	return 0, false
}

// Receipt tracks one message by its client supplied id.
type Receipt struct {
	ClientID string
	Sender   uuid.UUID
	State    ReceiptState
}

// Advance moves the receipt to the requested state. Skipping ahead is fine;
// repeats and regressions leave it unchanged and report false.
func (r *Receipt) Advance(to ReceiptState) bool {
	if to <= r.State || to > ReceiptSeen {
		return false
	}
	r.State = to
	return true
}

// DefaultReceiptCap bounds a room's receipt book when no cap is configured.
const DefaultReceiptCap = 512

// ReceiptBook holds the receipts of one invite room. Once full, the oldest
// receipt is evicted.
type ReceiptBook struct {
	cap   int
	order []string
	byID  map[string]*Receipt
}

// NewReceiptBook returns an empty book holding at most cap receipts.
func NewReceiptBook(cap int) *ReceiptBook {
	if cap <= 0 {
		cap = DefaultReceiptCap
	}
	return &ReceiptBook{cap: cap, byID: make(map[string]*Receipt)}
}

// Add records a new message in state sent.
func (b *ReceiptBook) Add(clientID string, sender uuid.UUID) (*Receipt, error) {
	if _, dup := b.byID[clientID]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMessage, clientID)
	}
	if len(b.order) >= b.cap {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.byID, oldest)
	}
	rec := &Receipt{ClientID: clientID, Sender: sender, State: ReceiptSent}
	b.order = append(b.order, clientID)
	b.byID[clientID] = rec
	return rec, nil
}

// Get returns the receipt for clientID.
func (b *ReceiptBook) Get(clientID string) (*Receipt, bool) {
	rec, ok := b.byID[clientID]
	return rec, ok
}

// Len returns the number of tracked receipts.
func (b *ReceiptBook) Len() int { return len(b.order) }

// Reset forgets every receipt.
func (b *ReceiptBook) Reset() {
	b.order = nil
	b.byID = make(map[string]*Receipt)
}
