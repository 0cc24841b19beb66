// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Popper is the part of a redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Writer persists a batch of records.
type Writer interface {
	WriteRoomEvents(ctx context.Context, events []models.RoomEvent) error
}

// Config tunes batching.
type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each BLPop so cancellation and flushes are noticed.
	PopTimeout time.Duration
}

// Service drains room lifecycle records from a redis list and writes them to
// the database in batches.
type Service struct {
	rdb    Popper
	store  Writer
	cfg    Config
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.RoomEvent
}

// New returns a service; zero Config fields take defaults.
func New(rdb Popper, store Writer, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = time.Second
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = time.Second
	}
	return &Service{
		rdb:    rdb,
		store:  store,
		cfg:    cfg,
		logger: logger,
		batch:  make([]models.RoomEvent, 0, cfg.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	defer s.flush(context.Background())

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("historian shutting down")
			return nil

		case <-ticker.C:
			s.flush(ctx)

		default:
			res, err := s.rdb.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.logger.WithError(err).Error("BLPop")
				select {
				case <-ctx.Done():
				case <-time.After(s.cfg.PopTimeout):
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload
			if len(res) < 2 {
				continue
			}
			var rec models.RoomEvent
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				s.logger.WithError(err).Warn("invalid room record")
				continue
			}
			s.append(ctx, rec)
		}
	}
}

func (s *Service) append(ctx context.Context, rec models.RoomEvent) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch in one transaction. A failed batch is
// logged and dropped; records are history, not state.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.RoomEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.store.WriteRoomEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("records", len(pending)).Error("flushing room records")
		return
	}
	s.logger.WithField("records", len(pending)).Debug("flushed room records")
}
