// internal/session/helpers_test.go
package session

import (
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// recordingSink collects lifecycle records instead of publishing them.
type recordingSink struct {
	mu      sync.Mutex
	records []models.RoomEvent
}

func (s *recordingSink) Publish(ev models.RoomEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, ev)
}

func (s *recordingSink) kinds() []models.RoomEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RoomEventType, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Event)
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestHub(t *testing.T, cfg Config) (*Hub, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	return NewHub(cfg, sink, quietLogger()), sink
}

func register(h *Hub, name string) *Connection {
	return h.Register(models.Profile{Name: name}, uuid.New())
}

// drain returns every event queued for c without blocking.
func drain(c *Connection) []protocol.Event {
	var out []protocol.Event
	for {
		select {
		case ev := <-c.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(evs []protocol.Event) []protocol.EventType {
	out := make([]protocol.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

// only drains c and requires exactly one event of type t.
func only(t *testing.T, c *Connection, typ protocol.EventType) protocol.Event {
	t.Helper()
	evs := drain(c)
	require.Len(t, evs, 1, "events: %v", types(evs))
	require.Equal(t, typ, evs[0].Type)
	return evs[0]
}

// pair registers two connections and matches them in mode. a waited first and
// plays X.
func pair(t *testing.T, h *Hub, mode models.Mode) (a, b *Connection, code string) {
	t.Helper()
	a = register(h, "alice")
	b = register(h, "bob")
	require.NoError(t, h.Enqueue(a.ID, mode))
	require.NoError(t, h.Enqueue(b.ID, mode))

	evs := drain(a)
	require.Equal(t, []protocol.EventType{protocol.TypeWaiting, protocol.TypePartnerFound, protocol.TypeReady}, types(evs))
	code = evs[1].RoomCode
	require.Equal(t, []protocol.EventType{protocol.TypePartnerFound, protocol.TypeReady}, types(drain(b)))
	return a, b, code
}

func frame(t *testing.T, h *Hub, c *Connection, raw string) error {
	t.Helper()
	return h.HandleFrame(c.ID, []byte(raw))
}
