// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedList hands out queued payloads, then behaves like an empty list.
type scriptedList struct {
	mu       sync.Mutex
	payloads []string
}

func (l *scriptedList) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx, "blpop")
	l.mu.Lock()
	if len(l.payloads) > 0 {
		p := l.payloads[0]
		l.payloads = l.payloads[1:]
		l.mu.Unlock()
		cmd.SetVal([]string{keys[0], p})
		return cmd
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		cmd.SetErr(ctx.Err())
	case <-time.After(timeout):
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

type memoryStore struct {
	mu      sync.Mutex
	batches [][]models.RoomEvent
	err     error
}

func (m *memoryStore) WriteRoomEvents(_ context.Context, evs []models.RoomEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, evs)
	return nil
}

func (m *memoryStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func payload(t *testing.T, code string, kind models.RoomEventType) string {
	t.Helper()
	data, err := json.Marshal(models.RoomEvent{RoomCode: code, Event: kind, Mode: models.ModeText})
	require.NoError(t, err)
	return string(data)
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestServiceBatchesRecords(t *testing.T) {
	list := &scriptedList{payloads: []string{
		payload(t, "a", models.RoomCreated),
		payload(t, "a", models.RoomActive),
		"{broken",
		payload(t, "a", models.RoomClosed),
	}}
	store := &memoryStore{}
	svc := New(list, store, Config{Queue: "rooms", BatchSize: 2, FlushDelay: time.Hour, PopTimeout: 10 * time.Millisecond}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return store.total() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// the trailing record is flushed on shutdown; the broken one is skipped
	assert.Equal(t, 3, store.total())
	assert.Len(t, store.batches[0], 2)
	assert.Equal(t, models.RoomClosed, store.batches[1][0].Event)
}

func TestServiceFlushesOnTicker(t *testing.T) {
	list := &scriptedList{payloads: []string{payload(t, "b", models.RoomCreated)}}
	store := &memoryStore{}
	svc := New(list, store, Config{Queue: "rooms", BatchSize: 100, FlushDelay: 20 * time.Millisecond, PopTimeout: 5 * time.Millisecond}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	assert.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestServiceDropsFailedBatch(t *testing.T) {
	store := &memoryStore{err: errors.New("db down")}
	svc := New(&scriptedList{}, store, Config{Queue: "rooms", BatchSize: 1}, quiet())

	svc.append(context.Background(), models.RoomEvent{RoomCode: "c"})
	svc.batchMu.Lock()
	defer svc.batchMu.Unlock()
	assert.Empty(t, svc.batch)
}
