// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeList struct {
	mu    sync.Mutex
	items map[string][]string
	gate  chan struct{}
	err   error
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.gate != nil {
		<-f.gate
	}
	cmd := redis.NewIntCmd(ctx, "rpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.items[key] = append(f.items[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.items[key])))
	return cmd
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPublisherPushesJSON(t *testing.T) {
	list := &fakeList{items: map[string][]string{}}
	p := NewPublisher(list, "rooms", 8, quiet())

	p.Publish(models.RoomEvent{RoomCode: "r1", Kind: "matchmaking", Mode: models.ModeText, Event: models.RoomCreated})
	p.Publish(models.RoomEvent{RoomCode: "r1", Kind: "matchmaking", Mode: models.ModeText, Event: models.RoomClosed, Reason: "left"})
	p.Close()
	p.Publish(models.RoomEvent{RoomCode: "late"})

	require.Len(t, list.items["rooms"], 2)
	var got models.RoomEvent
	require.NoError(t, json.Unmarshal([]byte(list.items["rooms"][1]), &got))
	assert.Equal(t, models.RoomClosed, got.Event)
	assert.Equal(t, "left", got.Reason)
}

func TestPublisherDropsWhenFull(t *testing.T) {
	list := &fakeList{items: map[string][]string{}, gate: make(chan struct{})}
	p := NewPublisher(list, "rooms", 1, quiet())

	// the worker holds at most one record in flight and one in the buffer
	for i := 0; i < 5; i++ {
		p.Publish(models.RoomEvent{RoomCode: "r"})
	}
	assert.GreaterOrEqual(t, p.Dropped(), uint64(3))

	close(list.gate)
	p.Close()
	assert.Equal(t, 5-int(p.Dropped()), len(list.items["rooms"]))
}

func TestPublisherSurvivesRedisErrors(t *testing.T) {
	list := &fakeList{items: map[string][]string{}, err: errors.New("connection refused")}
	p := NewPublisher(list, "rooms", 4, quiet())
	p.Publish(models.RoomEvent{RoomCode: "r"})
	p.Close()
	assert.Empty(t, list.items["rooms"])
}
