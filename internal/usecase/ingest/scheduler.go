package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Scheduler debounces re-validation requests
// Rapid submissions collapse into the latest one; a submission that arrives while
// a pass is running cancels that pass and its result is never delivered.
type Scheduler struct {
	pipeline *Pipeline
	debounce time.Duration
	observer Observer
	logger   *zap.Logger

	mu         sync.Mutex
	pending    []domain.RecipientRow
	hasPending bool
	generation uint64

	deliverMu sync.Mutex
	wake      chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewScheduler creates a new Scheduler instance and starts its loop
func NewScheduler(pipeline *Pipeline, debounce time.Duration, observer Observer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		pipeline: pipeline,
		debounce: debounce,
		observer: observer,
		logger:   logger.With(zap.String("component", "ingest.scheduler")),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()
	return s
}

// Submit requests a validation pass over rows
// The slice is copied, so the caller may keep editing its own
func (s *Scheduler) Submit(rows []domain.RecipientRow) {
	s.mu.Lock()
	s.pending = append([]domain.RecipientRow(nil), rows...)
	s.hasPending = true
	s.generation++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops the loop, cancels any running pass and waits for it to return
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	var (
		fire   <-chan time.Time
		cancel context.CancelFunc = func() {}
	)
	defer func() { cancel() }()

	for {
		select {
		case <-s.stop:
			return

		case <-s.wake:
			cancel()
			fire = time.After(s.debounce)

		case <-fire:
			fire = nil

			s.mu.Lock()
			if !s.hasPending {
				s.mu.Unlock()
				continue
			}
			rows, gen := s.pending, s.generation
			s.pending, s.hasPending = nil, false
			s.mu.Unlock()

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			s.wg.Add(1)
			go s.run(ctx, rows, gen)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, rows []domain.RecipientRow, gen uint64) {
	defer s.wg.Done()

	observer := Observer{
		OnChunkProcessed: func(chunkIndex, totalChunks int) {
			if s.current(gen) {
				s.observer.chunkProcessed(chunkIndex, totalChunks)
			}
		},
	}

	report, err := s.pipeline.Classify(ctx, rows, observer)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.current(gen) {
		s.logger.Debug("discarding stale validation result", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.observer.failed(err)
		}
		return
	}
	s.observer.complete(report)
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}
