// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Connect opens a redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Pusher is the part of a redis client the publisher needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Publisher pushes room lifecycle records onto a redis list for the
// historian. Publish never blocks: records are handed to a single worker
// through a buffered channel and dropped when it is full.
type Publisher struct {
	rdb     Pusher
	queue   string
	records chan models.RoomEvent
	logger  *logrus.Logger

	dropped atomic.Uint64
	closeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

// DefaultBuffer is the number of records held while redis is slow.
const DefaultBuffer = 1024

// NewPublisher starts the worker. Close stops it after draining.
func NewPublisher(rdb Pusher, queue string, buffer int, logger *logrus.Logger) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	p := &Publisher{
		rdb:     rdb,
		queue:   queue,
		records: make(chan models.RoomEvent, buffer),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues a record.
func (p *Publisher) Publish(ev models.RoomEvent) {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.records <- ev:
	default:
		p.dropped.Inc()
		p.logger.WithFields(logrus.Fields{
			"room":  ev.RoomCode,
			"event": ev.Event,
		}).Warn("lifecycle buffer full, dropped record")
	}
}

// Dropped is the number of records lost to a full buffer.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Close flushes the queued records and stops the worker.
func (p *Publisher) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.records)
	p.closeMu.Unlock()
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.records {
		if err := p.push(ev); err != nil {
			p.logger.WithError(err).WithField("room", ev.RoomCode).Error("publishing lifecycle record")
		}
	}
}

func (p *Publisher) push(ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
